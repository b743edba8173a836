package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"food-ordering/models"
	"food-ordering/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of *tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts a card for every paid order to the admin chat (MESSAGE_TOKEN bot).
type Notifier struct {
	api    sender
	chatID int64
}

// NewNotifier builds the bot client; every Bot API call is bounded by timeout.
func NewNotifier(token string, adminChatID int64, timeout time.Duration) (*Notifier, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Notifier{api: api, chatID: adminChatID}, nil
}

// OrderPaid returns as soon as ctx is done even if the send is still in flight.
func (n *Notifier) OrderPaid(ctx context.Context, order models.OrderRecord) error {
	if n == nil || n.api == nil || n.chatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, BuildOrderCard(order))
	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BuildOrderCard renders the admin message for a paid order.
func BuildOrderCard(o models.OrderRecord) string {
	cur := strings.ToUpper(o.Currency)
	var b strings.Builder
	fmt.Fprintf(&b, "New paid order #%d\n", o.ID)
	fmt.Fprintf(&b, "Customer: %s\n", o.OwnerEmail)
	for _, l := range o.LineItems {
		fmt.Fprintf(&b, "• %s x%d: %s %s\n", l.Description, l.Quantity,
			services.FromMinorUnits(l.UnitAmount*l.Quantity).StringFixed(2), cur)
	}
	fmt.Fprintf(&b, "Total: %s %s\n", services.FromMinorUnits(o.TotalAmount).StringFixed(2), cur)
	fmt.Fprintf(&b, "Session: %s", o.ExternalSessionID)
	return b.String()
}

var _ services.OrderPaidHook = (*Notifier)(nil)
