// Package memory keeps saga log entries in process memory. It is the
// default when no SQLite path is configured.
package memory

import (
	"context"
	"sync"

	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog"
)

// Repository is an in-memory sagalog.Repository. Safe for concurrent use.
type Repository struct {
	mu      sync.RWMutex
	entries map[string][]sagalog.SagaLog
}

func New() *Repository {
	return &Repository{entries: make(map[string][]sagalog.SagaLog)}
}

func (r *Repository) Save(_ context.Context, entry *sagalog.SagaLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.SagaID] = append(r.entries[entry.SagaID], *entry)
	return nil
}

func (r *Repository) History(_ context.Context, sagaID string) ([]sagalog.SagaLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]sagalog.SagaLog(nil), r.entries[sagaID]...), nil
}

func (r *Repository) Close() error { return nil }
