package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type placedData struct {
	OrderID int `json:"order_id"`
}

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent(OrderPlaced, "7", "marketplace", placedData{OrderID: 7})
	require.NoError(t, err)

	assert.NotEmpty(t, evt.EventID)
	assert.Equal(t, OrderPlaced, evt.EventType)
	assert.Equal(t, "7", evt.AggregateID)
	assert.JSONEq(t, `{"order_id":7}`, string(evt.Data))
	assert.False(t, evt.Timestamp.IsZero())
}

func TestToMessage(t *testing.T) {
	evt, err := NewEvent(OrderCancelled, "9", "marketplace", placedData{OrderID: 9})
	require.NoError(t, err)

	msg, err := toMessage(evt)
	require.NoError(t, err)
	assert.Equal(t, []byte("9"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(OrderCancelled), msg.Headers[0].Value)

	var back Event
	require.NoError(t, json.Unmarshal(msg.Value, &back))
	assert.Equal(t, evt.EventID, back.EventID)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), &Event{}))
	assert.NoError(t, p.Close())
}
