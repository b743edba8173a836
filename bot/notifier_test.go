package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"food-ordering/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []tgbotapi.Chattable
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func sampleOrder() models.OrderRecord {
	return models.OrderRecord{
		ID:                42,
		OwnerEmail:        "a@x.com",
		ExternalSessionID: "cs_1",
		Currency:          "usd",
		TotalAmount:       2148,
		LineItems: []models.OrderLine{
			{Description: "Pizza", Quantity: 2, UnitAmount: 999, AmountTotal: 1998, Currency: "usd"},
			{Description: "Cola", Quantity: 1, UnitAmount: 150, AmountTotal: 150, Currency: "usd"},
		},
	}
}

func TestBuildOrderCard(t *testing.T) {
	want := "New paid order #42\n" +
		"Customer: a@x.com\n" +
		"• Pizza x2: 19.98 USD\n" +
		"• Cola x1: 1.50 USD\n" +
		"Total: 21.48 USD\n" +
		"Session: cs_1"
	assert.Equal(t, want, BuildOrderCard(sampleOrder()))
}

func TestNotifier_OrderPaid(t *testing.T) {
	s := &fakeSender{}
	n := &Notifier{api: s, chatID: 1001}
	require.NoError(t, n.OrderPaid(context.Background(), sampleOrder()))
	require.Len(t, s.sent, 1)
	msg, ok := s.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(1001), msg.ChatID)
	assert.Contains(t, msg.Text, "#42")

	s.err = errors.New("blocked by user")
	assert.Error(t, n.OrderPaid(context.Background(), sampleOrder()))
}

func TestNotifier_DisabledWithoutChat(t *testing.T) {
	s := &fakeSender{}
	n := &Notifier{api: s}
	require.NoError(t, n.OrderPaid(context.Background(), sampleOrder()))
	assert.Empty(t, s.sent)

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.OrderPaid(context.Background(), sampleOrder()))
}

func TestNotifier_OrderPaidHonorsDeadline(t *testing.T) {
	s := &fakeSender{block: make(chan struct{})}
	defer close(s.block)
	n := &Notifier{api: s, chatID: 1001}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := n.OrderPaid(ctx, sampleOrder())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNotifier_OrderPaidSkipsCancelledContext(t *testing.T) {
	s := &fakeSender{}
	n := &Notifier{api: s, chatID: 1001}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.OrderPaid(ctx, sampleOrder()), context.Canceled)
	assert.Empty(t, s.sent)
}
