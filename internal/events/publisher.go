package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const TypeOrderPaid = "order.paid"

// OrderPaid is published once per order when its payment succeeds.
type OrderPaid struct {
	Type            string     `json:"type"`
	OrderID         uuid.UUID  `json:"order_id"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	PaidAt          time.Time  `json:"paid_at"`
}

type Publisher interface {
	PublishOrderPaid(ctx context.Context, event OrderPaid) error
	Close() error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer MessageWriter) Publisher {
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) PublishOrderPaid(ctx context.Context, event OrderPaid) error {
	event.Type = TypeOrderPaid
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to marshal order paid event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte("order-" + event.OrderID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeOrderPaid)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: failed to publish order paid event: %w", err)
	}
	log.Debug().Stringer("order_id", event.OrderID).Msg("events: order paid published")
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type noopPublisher struct{}

// NewNoopPublisher is used when no brokers are configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishOrderPaid(ctx context.Context, event OrderPaid) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
