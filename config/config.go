package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	DB       DBConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Telegram TelegramConfig
	Store    string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type HTTPConfig struct {
	Port          string
	ClientOrigins []string
}

type AuthConfig struct {
	AccessToken  string // HMAC secret for session JWTs
	SecureCookie bool   // NODE_ENV=production
	TokenTTL     time.Duration
	AdminEmails  []string // session emails allowed on admin-only routes
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string // override for tests / stripe-mock; empty = api.stripe.com
}

type CheckoutConfig struct {
	SuccessURL      string
	CancelURL       string
	Currency        string
	ProviderTimeout time.Duration
	HookTimeout     time.Duration // per paid-order hook (notifier, publisher)
}

type RedisConfig struct {
	Address string
}

type KafkaConfig struct {
	Brokers     string
	OrdersTopic string
}

type TelegramConfig struct {
	MessageToken string // token for sending paid-order notifications to admin
	AdminChatID  int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	adminID, _ := strconv.ParseInt(getEnv("ADMIN_ID", "0"), 10, 64)

	timeout, err := time.ParseDuration(getEnv("PROVIDER_TIMEOUT", "10s"))
	if err != nil {
		return nil, err
	}
	hookTimeout, err := time.ParseDuration(getEnv("HOOK_TIMEOUT", "5s"))
	if err != nil {
		return nil, err
	}

	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     port,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "food_app"),
		},
		HTTP: HTTPConfig{
			Port:          getEnv("PORT", "8000"),
			ClientOrigins: splitList(getEnv("CLIENT_ORIGINS", "http://localhost:5173")),
		},
		Auth: AuthConfig{
			AccessToken:  getEnv("ACCESS_TOKEN", ""),
			SecureCookie: getEnv("NODE_ENV", "") == "production",
			TokenTTL:     time.Hour,
			AdminEmails:  splitList(strings.ToLower(getEnv("ADMIN_EMAILS", ""))),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			APIURL:        getEnv("STRIPE_API_URL", ""),
		},
		Checkout: CheckoutConfig{
			SuccessURL:      getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/payment/success"),
			CancelURL:       getEnv("CHECKOUT_CANCEL_URL", "http://localhost:5173/payment/cancel"),
			Currency:        strings.ToLower(getEnv("CHECKOUT_CURRENCY", "usd")),
			ProviderTimeout: timeout,
			HookTimeout:     hookTimeout,
		},
		Redis: RedisConfig{
			Address: getEnv("REDIS_ADDRESS", ""),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnv("KAFKA_BROKERS", ""),
			OrdersTopic: getEnv("KAFKA_ORDERS_TOPIC", "orders.paid"),
		},
		Telegram: TelegramConfig{
			MessageToken: getEnv("MESSAGE_TOKEN", ""),
			AdminChatID:  adminID,
		},
		Store: getEnv("STORE", StorePostgres),
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
