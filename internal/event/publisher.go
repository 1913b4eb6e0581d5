// Package event publishes lifecycle events after each committed
// cross-aggregate sequence, so downstream consumers (notifications,
// projections) can react without polling.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Lifecycle event types.
const (
	TypeOrderCreated    = "order.created"
	TypeOrderPaid       = "order.paid"
	TypeOrderCancelled  = "order.cancelled"
	TypeOrderRefunded   = "order.refunded"
	TypePaymentCreated  = "payment.created"
	TypePaymentPaid     = "payment.paid"
	TypePaymentFailed   = "payment.failed"
	TypePaymentRefunded = "payment.refunded"
)

// Envelope wraps a lifecycle event on the wire.
type Envelope struct {
	Type        string    `json:"type"`
	AggregateID string    `json:"aggregateId"`
	OccurredAt  time.Time `json:"occurredAt"`
	Data        any       `json:"data,omitempty"`
}

// Publisher emits lifecycle events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, eventType, aggregateID string, data any) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic, keyed by aggregate id
// so events for one aggregate stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, aggregateID string, data any) error {
	envelope := Envelope{
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now(),
		Data:        data,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(aggregateID),
		Value: payload,
		Time:  envelope.OccurredAt,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
		return err
	}

	p.logger.Debug().Str("event_type", eventType).Str("aggregate_id", aggregateID).Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
