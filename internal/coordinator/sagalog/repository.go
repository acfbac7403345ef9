package sagalog

import (
	"context"
	"fmt"
	"strconv"
)

// Repository is the port (interface) for persisting saga log entries.
// The coordinator depends on this abstraction, not on SQLite directly.
type Repository interface {
	// Save appends a row; the log is never updated in place.
	Save(ctx context.Context, entry *SagaLog) error
	// History returns every entry of sagaID, oldest first.
	History(ctx context.Context, sagaID string) ([]SagaLog, error)
	Close() error
}

// SagaID builds the identifier used for one saga of one order.
func SagaID(kind Kind, orderID int) string {
	return fmt.Sprintf("%s:%s", kind, strconv.Itoa(orderID))
}
