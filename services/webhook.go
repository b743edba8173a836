package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"food-ordering/config"
	"food-ordering/models"
	"food-ordering/payments"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultHookTimeout = 5 * time.Second

type WebhookOutcome string

const (
	OutcomeRecorded  WebhookOutcome = "recorded"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
)

type WebhookResult struct {
	Outcome   WebhookOutcome
	EventID   string
	EventType string
	Order     *models.OrderRecord
}

// OrderPaidHook runs after an order is durably recorded, detached from the
// delivery and bounded by WebhookDeps.HookTimeout. Its failure never fails the
// webhook delivery.
type OrderPaidHook interface {
	OrderPaid(ctx context.Context, order models.OrderRecord) error
}

type WebhookDeps struct {
	Verifier    payments.EventVerifier
	Provider    payments.Provider
	Ledger      Ledger
	Carts       CartStore
	Locker      KeyLocker
	Hooks       []OrderPaidHook
	Timeout     time.Duration // provider line-item lookup
	HookTimeout time.Duration // each OrderPaidHook call
	Logger      *logrus.Logger
}

// WebhookProcessor reconciles provider settlement events into the ledger.
//
// A delivery reports success only once its order is recorded or recognized as
// already recorded; anything failing earlier returns an error so the provider
// redelivers.
type WebhookProcessor struct {
	WebhookDeps
	hooks sync.WaitGroup
}

func NewWebhookProcessor(deps WebhookDeps) *WebhookProcessor {
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = defaultProviderTimeout
	}
	if deps.HookTimeout <= 0 {
		deps.HookTimeout = defaultHookTimeout
	}
	if deps.Logger == nil {
		deps.Logger = config.GetLogger()
	}
	return &WebhookProcessor{WebhookDeps: deps}
}

func isSettlement(ev *payments.Event) bool {
	if ev.Session == nil {
		return false
	}
	switch ev.Type {
	case payments.EventCheckoutSessionCompleted:
		// delayed payment methods complete the session unpaid and settle later
		st := ev.Session.PaymentStatus
		return st == payments.PaymentStatusPaid || st == payments.PaymentStatusNoPaymentRequired
	case payments.EventAsyncPaymentSucceeded:
		return true
	}
	return false
}

// Process verifies payload against signatureHeader and, for a completed
// payment, records the order and clears the purchaser's cart.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	const op = "webhook.process"
	ctx, span := tracer.Start(ctx, "WebhookProcessor.Process")
	defer span.End()

	event, err := p.Verifier.VerifyEvent(payload, signatureHeader)
	if err != nil {
		span.SetStatus(codes.Error, "verify")
		if errors.Is(err, payments.ErrInvalidSignature) {
			return nil, AuthError(op, "invalid webhook signature", err)
		}
		return nil, ValidationError(op, err.Error())
	}
	res := &WebhookResult{EventID: event.ID, EventType: event.Type}
	span.SetAttributes(
		attribute.String("webhook.event_id", event.ID),
		attribute.String("webhook.event_type", event.Type),
	)
	log := p.Logger.WithFields(logrus.Fields{
		"module":     "webhook",
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	if !isSettlement(event) {
		log.Debug("event acknowledged without action")
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	sess := event.Session
	owner := sess.OwnerEmail()
	if owner == "" {
		return nil, ValidationError(op, fmt.Sprintf("session %s carries no purchaser email", sess.ID))
	}
	log = log.WithFields(logrus.Fields{"session_id": sess.ID, "owner": owner})
	span.SetAttributes(attribute.String("webhook.session_id", sess.ID))

	lock, err := p.Locker.Lock(ctx, "checkout:session:"+sess.ID)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: op, Message: "could not lock session", Err: err}
	}
	var unlockOnce sync.Once
	unlock := func() { unlockOnce.Do(lock) }
	defer unlock()

	existing, err := p.Ledger.FindBySessionID(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("settlement already recorded")
		res.Outcome, res.Order = OutcomeDuplicate, existing
		return res, nil
	}

	lines, err := p.resolveLineItems(ctx, sess.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve line items")
		config.LogError(p.Logger, "services/webhook.go", "Process", "ListLineItems", sess.ID, err)
		return nil, ExternalServiceError(op, err)
	}

	order := models.OrderRecord{
		OwnerEmail:        owner,
		LineItems:         lines,
		Status:            models.OrderStatusSucceeded,
		ExternalSessionID: sess.ID,
		TotalAmount:       models.SumLineItems(lines),
		Currency:          sess.Currency,
	}
	if order.Currency == "" && len(lines) > 0 {
		order.Currency = lines[0].Currency
	}
	if sess.AmountTotal != 0 && sess.AmountTotal != order.TotalAmount {
		log.WithFields(logrus.Fields{
			"session_amount": sess.AmountTotal,
			"line_amount":    order.TotalAmount,
		}).Warn("session total differs from sum of line items")
	}

	stored, err := p.Ledger.Append(ctx, order)
	if errors.Is(err, ErrDuplicateOrder) {
		log.Info("settlement recorded by a concurrent delivery")
		res.Outcome = OutcomeDuplicate
		if res.Order, err = p.Ledger.FindBySessionID(ctx, sess.ID); err != nil {
			config.LogError(p.Logger, "services/webhook.go", "Process", "Ledger.FindBySessionID", sess.ID, err)
		}
		return res, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append order")
		config.LogError(p.Logger, "services/webhook.go", "Process", "Ledger.Append", sess.ID, err)
		return nil, err
	}
	res.Outcome, res.Order = OutcomeRecorded, stored

	// The payment is recorded from here on; failures below only get logged.
	if n, err := p.Carts.Clear(ctx, owner); err != nil {
		config.LogError(p.Logger, "services/webhook.go", "Process", "Carts.Clear", owner, err)
	} else {
		log.WithField("cleared_lines", n).Info("order recorded, cart cleared")
	}
	unlock()

	p.dispatchHooks(ctx, *stored)
	return res, nil
}

// dispatchHooks runs each hook in its own goroutine, detached from the
// request's cancellation.
func (p *WebhookProcessor) dispatchHooks(ctx context.Context, order models.OrderRecord) {
	base := context.WithoutCancel(ctx)
	for _, h := range p.Hooks {
		p.hooks.Add(1)
		go func(h OrderPaidHook) {
			defer p.hooks.Done()
			hctx, cancel := context.WithTimeout(base, p.HookTimeout)
			defer cancel()
			if err := h.OrderPaid(hctx, order); err != nil {
				config.LogError(p.Logger, "services/webhook.go", "dispatchHooks", fmt.Sprintf("%T.OrderPaid", h), order.ID, err)
			}
		}(h)
	}
}

// WaitHooks blocks until dispatched hooks return or ctx is done.
func (p *WebhookProcessor) WaitHooks(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.hooks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WebhookProcessor) resolveLineItems(ctx context.Context, sessionID string) ([]models.OrderLine, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	settled, err := p.Provider.ListLineItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(settled) == 0 {
		return nil, fmt.Errorf("session %s has no line items", sessionID)
	}
	lines := make([]models.OrderLine, 0, len(settled))
	for _, s := range settled {
		lines = append(lines, models.OrderLine{
			Description: s.Description,
			Quantity:    s.Quantity,
			UnitAmount:  s.UnitAmount,
			AmountTotal: s.AmountTotal,
			Currency:    s.Currency,
		})
	}
	return lines, nil
}
