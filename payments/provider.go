// Package payments talks to the hosted payment provider: it opens checkout
// sessions, resolves settled line items and authenticates webhook events.
package payments

import (
	"context"
	"errors"
)

const (
	EventCheckoutSessionCompleted  = "checkout.session.completed"
	EventAsyncPaymentSucceeded     = "checkout.session.async_payment_succeeded"
	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
	MetadataOwnerEmail             = "owner_email"
	SignatureHeader                = "Stripe-Signature"
)

var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// LineItemRequest is one provider price descriptor. UnitAmount is in minor units.
type LineItemRequest struct {
	Name       string
	ImageRef   string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	Lines         []LineItemRequest
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type Session struct {
	ID  string
	URL string
}

// SettledLine is a purchased line as the provider reports it after payment.
type SettledLine struct {
	Description string
	Quantity    int64
	UnitAmount  int64
	AmountTotal int64
	Currency    string
}

// CheckoutSession is the session object carried by a checkout event.
type CheckoutSession struct {
	ID            string
	CustomerEmail string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

// OwnerEmail prefers the metadata set at session creation over the email typed at the provider.
func (s *CheckoutSession) OwnerEmail() string {
	if s == nil {
		return ""
	}
	if v := s.Metadata[MetadataOwnerEmail]; v != "" {
		return v
	}
	return s.CustomerEmail
}

type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// Provider is the outbound port to the payment provider.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	ListLineItems(ctx context.Context, sessionID string) ([]SettledLine, error)
}

// EventVerifier authenticates a raw webhook body against its signature header
// before anything in the body is trusted.
type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
