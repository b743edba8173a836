package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

type StripeOptions struct {
	SecretKey  string
	APIURL     string // empty = api.stripe.com
	Timeout    time.Duration
	MaxRetries int64
	Logger     stripe.LeveledLoggerInterface
}

// StripeProvider holds its own API client; nothing is set on the stripe package globals.
type StripeProvider struct {
	api    *client.API
	logger stripe.LeveledLoggerInterface
}

func NewStripeProvider(opts StripeOptions) *StripeProvider {
	httpClient := &http.Client{Timeout: opts.Timeout}
	backend := func(t stripe.SupportedBackend) stripe.Backend {
		cfg := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(opts.MaxRetries),
		}
		if opts.Logger != nil {
			cfg.LeveledLogger = opts.Logger
		}
		if opts.APIURL != "" && t == stripe.APIBackend {
			cfg.URL = stripe.String(strings.TrimRight(opts.APIURL, "/"))
		}
		return stripe.GetBackendWithConfig(t, cfg)
	}

	return &StripeProvider{
		api: client.New(opts.SecretKey, &stripe.Backends{
			API:     backend(stripe.APIBackend),
			Connect: backend(stripe.ConnectBackend),
			Uploads: backend(stripe.UploadsBackend),
		}),
		logger: opts.Logger,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		CustomerEmail: stripe.String(req.CustomerEmail),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	for _, l := range req.Lines {
		item := &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(l.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
			},
			Quantity: stripe.Int64(l.Quantity),
		}
		if l.ImageRef != "" {
			item.PriceData.ProductData.Images = []*string{stripe.String(l.ImageRef)}
		}
		params.LineItems = append(params.LineItems, item)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) ListLineItems(ctx context.Context, sessionID string) ([]SettledLine, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var lines []SettledLine
	it := p.api.CheckoutSessions.ListLineItems(params)
	for it.Next() {
		li := it.LineItem()
		line := SettledLine{
			Description: li.Description,
			Quantity:    li.Quantity,
			AmountTotal: li.AmountTotal,
			Currency:    string(li.Currency),
		}
		if li.Price != nil {
			line.UnitAmount = li.Price.UnitAmount
		} else if li.Quantity > 0 {
			line.UnitAmount = p.unitFromSubtotal(sessionID, li)
		}
		lines = append(lines, line)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe: list line items of %s: %w", sessionID, err)
	}
	return lines, nil
}

// unitFromSubtotal derives a unit amount for a line without a price object,
// rounding half up when the subtotal is not a multiple of the quantity.
func (p *StripeProvider) unitFromSubtotal(sessionID string, li *stripe.LineItem) int64 {
	unit, rem := li.AmountSubtotal/li.Quantity, li.AmountSubtotal%li.Quantity
	if rem == 0 {
		return unit
	}
	if 2*rem >= li.Quantity {
		unit++
	}
	if p.logger != nil {
		p.logger.Warnf("stripe: line %s of session %s: subtotal %d does not divide by quantity %d; unit amount rounded to %d",
			li.ID, sessionID, li.AmountSubtotal, li.Quantity, unit)
	}
	return unit
}

// StripeVerifier checks the Stripe-Signature header with the endpoint secret.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

func (v *StripeVerifier) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || ev.Data == nil {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("stripe: decode checkout session of event %s: %w", ev.ID, err)
	}
	out.Session = &CheckoutSession{
		ID:            cs.ID,
		CustomerEmail: cs.CustomerEmail,
		PaymentStatus: string(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
		Metadata:      cs.Metadata,
	}
	if out.Session.CustomerEmail == "" && cs.CustomerDetails != nil {
		out.Session.CustomerEmail = cs.CustomerDetails.Email
	}
	return out, nil
}
