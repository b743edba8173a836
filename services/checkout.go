package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"food-ordering/config"
	"food-ordering/models"
	"food-ordering/payments"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultProviderTimeout = 10 * time.Second

var (
	tracer   = otel.Tracer("food-ordering/services")
	validate = validator.New()
)

type CheckoutOptions struct {
	SuccessURL string
	CancelURL  string
	Currency   string
	Timeout    time.Duration
}

// CheckoutInitiator turns a cart snapshot into a hosted payment session.
// It keeps no state of its own.
type CheckoutInitiator struct {
	provider payments.Provider
	opts     CheckoutOptions
	logger   *logrus.Logger
}

func NewCheckoutInitiator(provider payments.Provider, opts CheckoutOptions, logger *logrus.Logger) *CheckoutInitiator {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProviderTimeout
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &CheckoutInitiator{provider: provider, opts: opts, logger: logger}
}

// successURL lets the storefront look the session up after the redirect.
func (c *CheckoutInitiator) successURL() string {
	u := c.opts.SuccessURL
	if strings.Contains(u, "{CHECKOUT_SESSION_ID}") {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "session_id={CHECKOUT_SESSION_ID}"
}

// BuildLineItems validates the snapshot and converts prices to minor units.
func BuildLineItems(lines []models.CheckoutLine) ([]payments.LineItemRequest, error) {
	const op = "checkout.start"
	if len(lines) == 0 {
		return nil, ValidationError(op, "cart is empty")
	}
	out := make([]payments.LineItemRequest, 0, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l.Name) == "" {
			return nil, ValidationError(op, fmt.Sprintf("cartItems[%d]: name is required", i))
		}
		if !l.UnitPrice.IsPositive() {
			return nil, ValidationError(op, fmt.Sprintf("cartItems[%d]: unit price must be positive", i))
		}
		if l.Quantity < 1 {
			return nil, ValidationError(op, fmt.Sprintf("cartItems[%d]: quantity must be at least 1", i))
		}
		amount := ToMinorUnits(l.UnitPrice)
		if amount < 1 {
			return nil, ValidationError(op, fmt.Sprintf("cartItems[%d]: unit price is below the smallest currency unit", i))
		}
		out = append(out, payments.LineItemRequest{
			Name:       l.Name,
			ImageRef:   l.ImageRef,
			UnitAmount: amount,
			Quantity:   l.Quantity,
		})
	}
	return out, nil
}

// Start validates the snapshot, opens a provider session and returns its redirect URL.
func (c *CheckoutInitiator) Start(ctx context.Context, ownerEmail string, lines []models.CheckoutLine) (string, error) {
	const op = "checkout.start"
	ctx, span := tracer.Start(ctx, "CheckoutInitiator.Start")
	defer span.End()

	if err := validate.Var(ownerEmail, "required,email"); err != nil {
		return "", ValidationError(op, "a valid ownerEmail is required")
	}
	items, err := BuildLineItems(lines)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int("checkout.lines", len(items)))

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	sess, err := c.provider.CreateCheckoutSession(ctx, payments.SessionRequest{
		Lines:         items,
		Currency:      c.opts.Currency,
		CustomerEmail: ownerEmail,
		SuccessURL:    c.successURL(),
		CancelURL:     c.opts.CancelURL,
		Metadata:      map[string]string{payments.MetadataOwnerEmail: ownerEmail},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create checkout session")
		config.LogError(c.logger, "services/checkout.go", "Start", "CreateCheckoutSession", ownerEmail, err)
		return "", ExternalServiceError(op, err)
	}
	if sess.URL == "" {
		return "", ExternalServiceError(op, fmt.Errorf("session %s has no redirect url", sess.ID))
	}

	c.logger.WithFields(logrus.Fields{
		"module":     "checkout",
		"session_id": sess.ID,
		"owner":      ownerEmail,
		"lines":      len(items),
	}).Info("checkout session created")
	return sess.URL, nil
}

// NewCheckoutOptions maps the checkout section of the config.
func NewCheckoutOptions(cfg config.CheckoutConfig) CheckoutOptions {
	return CheckoutOptions{
		SuccessURL: cfg.SuccessURL,
		CancelURL:  cfg.CancelURL,
		Currency:   cfg.Currency,
		Timeout:    cfg.ProviderTimeout,
	}
}
