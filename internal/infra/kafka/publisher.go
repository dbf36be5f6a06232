package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// DefaultTopic receives every ledger event
const DefaultTopic = "ledger.events"

// MessageWriter is the part of kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher delivers ledger events to Kafka, keyed by company so that the
// events of one company keep their order within a partition
type Publisher struct {
	writer MessageWriter
	logger *logger.Logger
}

// NewWriter builds a kafka.Writer for the given brokers and topic
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewPublisher creates a publisher writing through w
func NewPublisher(w MessageWriter, log *logger.Logger) *Publisher {
	return &Publisher{
		writer: w,
		logger: log.WithField("component", "kafka_publisher"),
	}
}

// Message converts an event to its Kafka message
func Message(event ledger.Event) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.CompanyID.String()),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}, nil
}

// Publish writes one event
func (p *Publisher) Publish(ctx context.Context, event ledger.Event) error {
	msg, err := Message(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish failed", "type", event.Type, "entity_id", event.EntityID, "error", err)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published", "type", event.Type, "entity_id", event.EntityID)
	return nil
}

// Close flushes pending messages and releases the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ ledger.EventPublisher = (*Publisher)(nil)
