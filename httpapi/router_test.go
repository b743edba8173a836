package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"food-ordering/metrics"
	"food-ordering/models"
	"food-ordering/payments"
	"food-ordering/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSignature = "t=1,v1=ok"

type stubProvider struct {
	createErr error
}

func (p *stubProvider) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &payments.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
}

func (p *stubProvider) ListLineItems(_ context.Context, sessionID string) ([]payments.SettledLine, error) {
	return []payments.SettledLine{{Description: "Pizza", Quantity: 2, UnitAmount: 999, AmountTotal: 1998, Currency: "usd"}}, nil
}

type stubVerifier struct{}

func (stubVerifier) VerifyEvent(payload []byte, sig string) (*payments.Event, error) {
	if sig != testSignature {
		return nil, payments.ErrInvalidSignature
	}
	var ev payments.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

type testServer struct {
	router   *gin.Engine
	sessions *SessionManager
	carts    *services.MemoryCartStore
	ledger   *services.MemoryLedger
	provider *stubProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ts := &testServer{
		sessions: NewSessionManager("test-secret", time.Hour, false),
		carts:    services.NewMemoryCartStore(),
		ledger:   services.NewMemoryLedger(),
		provider: &stubProvider{},
	}
	menu := services.NewMemoryMenuCatalog(
		models.MenuItem{ItemNumber: 1, Name: "Pizza", Category: "Pizza", UnitPrice: decimal.RequireFromString("9.99")},
		models.MenuItem{ItemNumber: 2, Name: "Cola", Category: "Drinks", UnitPrice: decimal.RequireFromString("1.50")},
	)
	ts.router = NewRouter(Deps{
		Carts:     ts.carts,
		Favorites: services.NewMemoryFavoriteStore(),
		Ledger:    ts.ledger,
		Menu:      menu,
		Checkout: services.NewCheckoutInitiator(ts.provider, services.CheckoutOptions{
			SuccessURL: "https://shop.example/ok",
			CancelURL:  "https://shop.example/cancel",
		}, logger),
		Webhooks: services.NewWebhookProcessor(services.WebhookDeps{
			Verifier: stubVerifier{},
			Provider: ts.provider,
			Ledger:   ts.ledger,
			Carts:    ts.carts,
			Logger:   logger,
		}),
		Sessions:    ts.sessions,
		Metrics:     metrics.NewServerMetrics("test"),
		Logger:      logger,
		AdminEmails: []string{"Boss@x.com"},
	})
	return ts
}

type request struct {
	method string
	path   string
	body   any
	raw    []byte
	email  string // session owner; empty sends no cookie
	header map[string]string
}

func (ts *testServer) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch {
	case r.raw != nil:
		body = bytes.NewReader(r.raw)
	case r.body != nil:
		b, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	if r.email != "" {
		token, err := ts.sessions.Issue(r.email)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func cartBody(qty int64) gin.H {
	return gin.H{
		"itemNumber": 7,
		"ownerEmail": "a@x.com",
		"quantity":   qty,
		"unitPrice":  "9.99",
		"name":       "Pizza",
		"imageRef":   "https://img.example/pizza.png",
	}
}

func TestIssueSessionSetsCookie(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, request{method: http.MethodPost, path: "/jwt", body: gin.H{"email": "a@x.com"}})
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	claims, err := ts.sessions.Verify(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)

	w = ts.do(t, request{method: http.MethodPost, path: "/jwt", body: gin.H{"email": "nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, request{method: http.MethodPost, path: "/logout"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestSessionGuard(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, request{method: http.MethodGet, path: "/favorites?ownerEmail=a@x.com"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized access", decode(t, w)["message"])

	req := httptest.NewRequest(http.MethodGet, "/favorites?ownerEmail=a@x.com", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "garbage"})
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/favorites?ownerEmail=a@x.com", email: "b@x.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden access", decode(t, w)["message"])

	w = ts.do(t, request{method: http.MethodGet, path: "/favorites?ownerEmail=a@x.com", email: "a@x.com"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionManager_RejectsExpiredAndForeignTokens(t *testing.T) {
	m := NewSessionManager("secret", time.Minute, false)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := m.Issue("a@x.com")
	require.NoError(t, err)
	_, err = NewSessionManager("secret", time.Minute, false).Verify(expired)
	assert.Error(t, err)

	foreign, err := NewSessionManager("other", time.Minute, false).Issue("a@x.com")
	require.NoError(t, err)
	_, err = NewSessionManager("secret", time.Minute, false).Verify(foreign)
	assert.Error(t, err)
}

func TestCartFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, request{method: http.MethodPost, path: "/cart", body: cartBody(2), email: "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "added", decode(t, w)["message"])

	w = ts.do(t, request{method: http.MethodPost, path: "/cart", body: cartBody(1), email: "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "updated", decode(t, w)["message"])

	w = ts.do(t, request{method: http.MethodPost, path: "/cart/count", body: gin.H{"ownerEmail": "a@x.com"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["totalCount"])

	w = ts.do(t, request{method: http.MethodPost, path: "/cart/adjust", email: "a@x.com",
		body: gin.H{"itemNumber": 7, "ownerEmail": "a@x.com", "direction": "inc"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["quantity"])

	w = ts.do(t, request{method: http.MethodPost, path: "/cart/list", email: "a@x.com", body: gin.H{"ownerEmail": "a@x.com"}})
	require.Equal(t, http.StatusOK, w.Code)
	var lines []models.CartLine
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].Quantity)

	for _, want := range []string{"updated", "removed"} {
		w = ts.do(t, request{method: http.MethodPost, path: "/cart/adjust", email: "a@x.com",
			body: gin.H{"itemNumber": 7, "ownerEmail": "a@x.com", "direction": "dec"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, decode(t, w)["message"])
	}

	w = ts.do(t, request{method: http.MethodPost, path: "/cart/adjust", email: "a@x.com",
		body: gin.H{"itemNumber": 7, "ownerEmail": "a@x.com", "direction": "dec"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartValidation(t *testing.T) {
	ts := newTestServer(t)

	body := cartBody(1)
	body["unitPrice"] = "0"
	w := ts.do(t, request{method: http.MethodPost, path: "/cart", body: body, email: "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, request{method: http.MethodPost, path: "/cart", body: gin.H{"ownerEmail": "a@x.com"}, email: "a@x.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields, ok := decode(t, w)["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "itemNumber")

	w = ts.do(t, request{method: http.MethodPost, path: "/cart/adjust", email: "a@x.com",
		body: gin.H{"itemNumber": 7, "ownerEmail": "a@x.com", "direction": "sideways"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a session may only write its own cart
	w = ts.do(t, request{method: http.MethodPost, path: "/cart", body: cartBody(1), email: "b@x.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFavoriteToggle(t *testing.T) {
	ts := newTestServer(t)
	body := gin.H{"itemNumber": 2, "ownerEmail": "a@x.com"}

	w := ts.do(t, request{method: http.MethodPost, path: "/favorites/toggle", body: body})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "added", decode(t, w)["message"])

	w = ts.do(t, request{method: http.MethodGet, path: "/favorites?ownerEmail=a@x.com", email: "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[2]`, w.Body.String())

	w = ts.do(t, request{method: http.MethodPost, path: "/favorites/toggle", body: body})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "removed", decode(t, w)["message"])
}

func TestStartCheckout(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, request{method: http.MethodPost, path: "/checkout/session", body: gin.H{
		"ownerEmail": "a@x.com",
		"cartItems": []gin.H{
			{"name": "Pizza", "imageRef": "https://img.example/pizza.png", "unitPrice": 9.99, "quantity": 2},
		},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://pay.example/cs_1", decode(t, w)["redirectUrl"])

	w = ts.do(t, request{method: http.MethodPost, path: "/checkout/session", body: gin.H{"ownerEmail": "a@x.com", "cartItems": []gin.H{}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.provider.createErr = errors.New("provider down")
	w = ts.do(t, request{method: http.MethodPost, path: "/checkout/session", body: gin.H{
		"ownerEmail": "a@x.com",
		"cartItems":  []gin.H{{"name": "Pizza", "unitPrice": 9.99, "quantity": 1}},
	}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, services.KindExternal.String(), decode(t, w)["error"])
}

func webhookBody(t *testing.T, sessionID string) []byte {
	t.Helper()
	b, err := json.Marshal(payments.Event{
		ID:   "evt_1",
		Type: payments.EventCheckoutSessionCompleted,
		Session: &payments.CheckoutSession{
			ID:            sessionID,
			PaymentStatus: payments.PaymentStatusPaid,
			Currency:      "usd",
			Metadata:      map[string]string{payments.MetadataOwnerEmail: "a@x.com"},
		},
	})
	require.NoError(t, err)
	return b
}

func TestPaymentWebhook(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, request{method: http.MethodPost, path: "/cart", body: cartBody(2), email: "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodPost, path: "/checkout/webhook", raw: webhookBody(t, "cs_1"),
		header: map[string]string{payments.SignatureHeader: "t=1,v1=forged"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid signature", decode(t, w)["message"])

	sig := map[string]string{payments.SignatureHeader: testSignature}
	w = ts.do(t, request{method: http.MethodPost, path: "/checkout/webhook", raw: webhookBody(t, "cs_1"), header: sig})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "recorded", decode(t, w)["message"])

	w = ts.do(t, request{method: http.MethodPost, path: "/checkout/webhook", raw: webhookBody(t, "cs_1"), header: sig})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate", decode(t, w)["message"])

	orders, err := ts.ledger.ListByOwner(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	total, err := ts.carts.TotalQuantity(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, total)

	w = ts.do(t, request{method: http.MethodGet, path: "/orders?ownerEmail=a@x.com", email: "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.OrderRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "cs_1", listed[0].ExternalSessionID)

	w = ts.do(t, request{method: http.MethodGet, path: "/stats/revenue", email: "boss@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1998), decode(t, w)["revenue"])
}

func TestRevenue_AdminOnly(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, request{method: http.MethodGet, path: "/stats/revenue"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/stats/revenue", email: "a@x.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden access", decode(t, w)["message"])

	w = ts.do(t, request{method: http.MethodGet, path: "/stats/revenue", email: "BOSS@x.com"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_EmptyListClosesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { c.Set(ctxSessionEmail, "a@x.com") }, RequireAdmin(nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPaymentWebhook_RejectsOversizedBody(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, request{method: http.MethodPost, path: "/checkout/webhook",
		raw:    []byte(strings.Repeat("x", maxWebhookBody+1)),
		header: map[string]string{payments.SignatureHeader: testSignature}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMenuRoutes(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, request{method: http.MethodGet, path: "/food-items?category=Drinks"})
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.MenuItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Cola", items[0].Name)

	w = ts.do(t, request{method: http.MethodGet, path: "/food-item/1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/food-item/abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/food-item/99"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Item not found", decode(t, w)["message"])
}

func TestHealthAndRequestID(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, request{method: http.MethodGet, path: "/health", header: map[string]string{headerRequestID: "req-1"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(headerRequestID))

	w = ts.do(t, request{method: http.MethodGet, path: "/health"})
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	w = ts.do(t, request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "food_test_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind services.ErrorKind
		want int
	}{
		{services.KindValidation, http.StatusBadRequest},
		{services.KindAuth, http.StatusUnauthorized},
		{services.KindNotFound, http.StatusNotFound},
		{services.KindExternal, http.StatusBadGateway},
		{services.KindPersistence, http.StatusInternalServerError},
		{services.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.kind), tt.kind.String())
	}
}
