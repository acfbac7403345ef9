package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeItems(t *testing.T) {
	got := MergeItems([]OrderItem{
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 4},
		{ProductID: 1, Quantity: 3},
	})
	assert.Equal(t, []OrderItem{{ProductID: 2, Quantity: 5}, {ProductID: 1, Quantity: 5}}, got)
	assert.Empty(t, MergeItems(nil))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPlaced, StatusCancelled, true},
		{StatusPlaced, StatusDelivered, true},
		{StatusPlaced, StatusPlaced, false},
		{StatusCancelled, StatusDelivered, false},
		{StatusDelivered, StatusCancelled, false},
		{"", StatusDelivered, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestClone(t *testing.T) {
	var nilOrder *Order
	assert.Nil(t, nilOrder.Clone())

	o := &Order{OrderID: 1, Items: []OrderItem{{ProductID: 1, Quantity: 1}}}
	c := o.Clone()
	c.Items[0].Quantity = 9
	assert.Equal(t, 1, o.Items[0].Quantity)
}
