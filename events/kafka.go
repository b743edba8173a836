package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"food-ordering/models"
	"food-ordering/services"

	"github.com/segmentio/kafka-go"
)

const TypeOrderPaid = "order.paid"

// OrderPaid is the payload published for every recorded order.
type OrderPaid struct {
	Type              string             `json:"type"`
	OrderID           int64              `json:"order_id"`
	OwnerEmail        string             `json:"owner_email"`
	ExternalSessionID string             `json:"external_session_id"`
	TotalAmount       int64              `json:"total_amount"`
	Currency          string             `json:"currency"`
	LineItems         []models.OrderLine `json:"line_items"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

func NewOrderPaid(o models.OrderRecord) OrderPaid {
	return OrderPaid{
		Type:              TypeOrderPaid,
		OrderID:           o.ID,
		OwnerEmail:        o.OwnerEmail,
		ExternalSessionID: o.ExternalSessionID,
		TotalAmount:       o.TotalAmount,
		Currency:          o.Currency,
		LineItems:         o.LineItems,
		OccurredAt:        o.CreatedAt.UTC(),
	}
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

// OrderPaid publishes keyed by session id so redeliveries land on one partition.
func (p *Publisher) OrderPaid(ctx context.Context, order models.OrderRecord) error {
	data, err := json.Marshal(NewOrderPaid(order))
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ExternalSessionID),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ services.OrderPaidHook = (*Publisher)(nil)
