package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers events. Implementations must not block the caller on
// broker round trips.
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }
func (Nop) Close() error                          { return nil }

// KafkaPublisher writes events to one topic with an async kafka-go writer.
// Delivery failures surface in the completion callback and are logged.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	logger = logger.With(slog.String("component", "events"), slog.String("topic", topic))
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("order events not delivered",
					slog.Int("count", len(messages)),
					slog.String("error", err.Error()),
				)
			}
		},
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// Publish enqueues evt keyed by its aggregate id so events of one order stay
// ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, evt *Event) error {
	msg, err := toMessage(evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", evt.EventType, err)
	}
	p.logger.DebugContext(ctx, "event queued",
		slog.String("event_type", evt.EventType),
		slog.String("aggregate_id", evt.AggregateID),
	)
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(evt *Event) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(evt.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
			{Key: "source", Value: []byte(evt.Source)},
		},
		Time: evt.Timestamp,
	}, nil
}
