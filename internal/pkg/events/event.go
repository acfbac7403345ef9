// Package events publishes order lifecycle events.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	OrderPlaced    = "order.placed"
	OrderCancelled = "order.cancelled"
)

// Event is the envelope written to the orders topic.
type Event struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Source      string          `json:"source"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// NewEvent creates an event with a generated ID and the current time.
func NewEvent(eventType, aggregateID, source string, data any) (*Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Source:      source,
		Timestamp:   time.Now().UTC(),
		Data:        b,
	}, nil
}
