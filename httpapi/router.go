package httpapi

import (
	"context"
	"net/http"
	"time"

	"food-ordering/config"
	"food-ordering/metrics"
	"food-ordering/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Carts     services.CartStore
	Favorites services.FavoriteStore
	Ledger    services.Ledger
	Menu      services.MenuCatalog
	Checkout  *services.CheckoutInitiator
	Webhooks  *services.WebhookProcessor
	Sessions  *SessionManager
	Metrics   *metrics.ServerMetrics
	Logger    *logrus.Logger
	// Health pings the backing store; nil means always healthy.
	Health        func(ctx context.Context) error
	ClientOrigins []string
	// AdminEmails may read store-wide stats; empty closes those routes.
	AdminEmails []string
}

type Server struct {
	carts     services.CartStore
	favorites services.FavoriteStore
	ledger    services.Ledger
	menu      services.MenuCatalog
	checkout  *services.CheckoutInitiator
	webhooks  *services.WebhookProcessor
	sessions  *SessionManager
	metrics   *metrics.ServerMetrics
	logger    *logrus.Logger
	health    func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	s := &Server{
		carts:     d.Carts,
		favorites: d.Favorites,
		ledger:    d.Ledger,
		menu:      d.Menu,
		checkout:  d.Checkout,
		webhooks:  d.Webhooks,
		sessions:  d.Sessions,
		metrics:   d.Metrics,
		logger:    d.Logger,
		health:    d.Health,
	}
	if s.metrics == nil {
		s.metrics = metrics.NewServerMetrics("api")
	}
	if s.logger == nil {
		s.logger = config.GetLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(s.logger), Instrument(s.metrics))
	if len(d.ClientOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.ClientOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", headerRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "food ordering api") })
	r.GET("/health", s.healthCheck)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	r.POST("/jwt", s.issueSession)
	r.POST("/logout", s.logout)

	r.GET("/food-items", s.listMenu)
	r.GET("/food-item/:itemNumber", s.getMenuItem)

	authed := s.sessions.RequireSession()

	r.POST("/cart", authed, s.upsertCartLine)
	r.POST("/cart/adjust", authed, s.adjustCartLine)
	r.POST("/cart/delete", authed, s.removeCartLine)
	r.POST("/cart/list", authed, s.listCart)
	r.POST("/cart/count", s.countCart)

	r.POST("/favorites/toggle", s.toggleFavorite)
	r.GET("/favorites", authed, s.listFavorites)

	r.POST("/checkout/session", s.startCheckout)
	r.POST("/checkout/webhook", s.paymentWebhook)

	r.GET("/orders", authed, s.listOrders)
	r.GET("/stats/revenue", authed, RequireAdmin(d.AdminEmails), s.revenue)

	return r
}

func (s *Server) healthCheck(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_error"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
