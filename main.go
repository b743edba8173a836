package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"food-ordering/bot"
	"food-ordering/config"
	"food-ordering/db"
	"food-ordering/events"
	"food-ordering/httpapi"
	"food-ordering/metrics"
	"food-ordering/payments"
	"food-ordering/services"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := config.GetLogger()

	// Check for migrate subcommand
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(cfg)
		return
	}

	if cfg.Auth.AccessToken == "" {
		fmt.Fprintln(os.Stderr, "ACCESS_TOKEN not set")
		os.Exit(1)
	}
	if cfg.Stripe.SecretKey == "" || cfg.Stripe.WebhookSecret == "" {
		fmt.Fprintln(os.Stderr, "STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET must be set")
		os.Exit(1)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	deps := httpapi.Deps{
		Logger:        logger,
		ClientOrigins: cfg.HTTP.ClientOrigins,
		Metrics:       metrics.NewServerMetrics("api"),
		Sessions:      httpapi.NewSessionManager(cfg.Auth.AccessToken, cfg.Auth.TokenTTL, cfg.Auth.SecureCookie),
	}

	switch cfg.Store {
	case config.StoreMemory:
		logger.WithFields(logrus.Fields{"field": "store"}).Warn("STORE=memory; orders are not durable")
		deps.Carts = services.NewMemoryCartStore()
		deps.Favorites = services.NewMemoryFavoriteStore()
		deps.Ledger = services.NewMemoryLedger()
		deps.Menu = services.NewMemoryMenuCatalog()
	default:
		ctx, cancel := context.WithTimeout(sigCtx, 10*time.Second)
		err := db.Init(ctx, cfg.DB)
		cancel()
		if err != nil {
			fmt.Fprintln(os.Stderr, "db:", err)
			os.Exit(1)
		}
		defer db.Close()

		// Optional auto-migration (useful in production and for fresh DBs).
		// Set AUTO_MIGRATE=1 (or "true") to enable.
		if v := strings.TrimSpace(os.Getenv("AUTO_MIGRATE")); v == "1" || strings.EqualFold(v, "true") {
			if err := applyMigrations(sigCtx, db.Pool, false); err != nil {
				fmt.Fprintln(os.Stderr, "migrate:", err)
				os.Exit(1)
			}
		}
		deps.Carts = services.NewPgCartStore(db.Pool)
		deps.Favorites = services.NewPgFavoriteStore(db.Pool)
		deps.Ledger = services.NewPgLedger(db.Pool)
		deps.Menu = services.NewPgMenuCatalog(db.Pool)
		deps.Health = db.Pool.Ping
	}

	// One provider client for the process lifetime, shared by checkout and webhook.
	provider := payments.NewStripeProvider(payments.StripeOptions{
		SecretKey:  cfg.Stripe.SecretKey,
		APIURL:     cfg.Stripe.APIURL,
		Timeout:    cfg.Checkout.ProviderTimeout,
		MaxRetries: 2,
		Logger:     logger,
	})
	deps.Checkout = services.NewCheckoutInitiator(provider, services.NewCheckoutOptions(cfg.Checkout), logger)

	var locker services.KeyLocker = services.NewLocalLocker()
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, PoolSize: 20})
		if err := rdb.Ping(sigCtx).Err(); err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis unreachable; using in-process locks: " + err.Error())
			_ = rdb.Close()
			rdb = nil
		} else {
			locker = services.NewRedisLocker(redislock.New(rdb), 30*time.Second, logger)
		}
	}

	var hooks []services.OrderPaidHook
	if cfg.Telegram.MessageToken != "" {
		n, err := bot.NewNotifier(cfg.Telegram.MessageToken, cfg.Telegram.AdminChatID, cfg.Checkout.HookTimeout)
		if err != nil {
			fmt.Fprintln(os.Stderr, "message bot:", err)
			os.Exit(1)
		}
		hooks = append(hooks, n)
	}
	var publisher *events.Publisher
	if brokers := events.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		publisher = events.NewPublisher(brokers, cfg.Kafka.OrdersTopic)
		hooks = append(hooks, publisher)
	}

	webhooks := services.NewWebhookProcessor(services.WebhookDeps{
		Verifier:    payments.NewStripeVerifier(cfg.Stripe.WebhookSecret),
		Provider:    provider,
		Ledger:      deps.Ledger,
		Carts:       deps.Carts,
		Locker:      locker,
		Hooks:       hooks,
		Timeout:     cfg.Checkout.ProviderTimeout,
		HookTimeout: cfg.Checkout.HookTimeout,
		Logger:      logger,
	})
	deps.Webhooks = webhooks
	deps.AdminEmails = cfg.Auth.AdminEmails

	if os.Getenv("NODE_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"port": cfg.HTTP.Port, "store": cfg.Store}).Info("server is running")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if err := webhooks.WaitHooks(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "hooks"}).Warn("paid-order hooks still running at exit: " + err.Error())
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

func runMigrate(cfg *config.Config) {
	if err := db.Init(context.Background(), cfg.DB); err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := applyMigrations(context.Background(), db.Pool, true); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
