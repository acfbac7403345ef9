// Package sqlite stores the saga audit trail in an append-only SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS saga_logs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    saga_id        TEXT NOT NULL,
    status         TEXT NOT NULL,
    current_step   TEXT NOT NULL DEFAULT '',
    payload        TEXT,
    error_messages TEXT NOT NULL DEFAULT '[]',
    trace_id       TEXT NOT NULL DEFAULT '',
    span_id        TEXT NOT NULL DEFAULT '',
    updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saga_logs_saga_id ON saga_logs(saga_id, id);
CREATE INDEX IF NOT EXISTS idx_saga_logs_trace_id ON saga_logs(trace_id);
`

// columns is the projection scanEntry expects.
const columns = `saga_id, status, current_step, COALESCE(payload, ''), error_messages, trace_id, span_id, updated_at`

// timeLayout keeps a fixed width so updated_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Repository struct {
	db *sql.DB
}

// Open creates the database file if needed and applies the schema. The pool
// is capped at one connection, so every worker's appends are serialized.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// Save appends one row.
func (r *Repository) Save(ctx context.Context, entry *sagalog.SagaLog) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO saga_logs
		(saga_id, status, current_step, payload, error_messages, trace_id, span_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SagaID,
		string(entry.Status),
		entry.CurrentStep,
		nullIfEmpty(entry.Payload),
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		entry.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save saga log for %q: %w", entry.SagaID, err)
	}
	return nil
}

// History returns every entry of sagaID in insertion order.
func (r *Repository) History(ctx context.Context, sagaID string) ([]sagalog.SagaLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM saga_logs WHERE saga_id = ? ORDER BY id`, sagaID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: history for %q: %w", sagaID, err)
	}
	defer rows.Close()

	var out []sagalog.SagaLog
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: history for %q: %w", sagaID, err)
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*sagalog.SagaLog, error) {
	var (
		entry     sagalog.SagaLog
		updatedAt string
	)
	if err := row.Scan(&entry.SagaID, &entry.Status, &entry.CurrentStep, &entry.Payload,
		&entry.ErrorMessages, &entry.TraceID, &entry.SpanID, &updatedAt); err != nil {
		return nil, err
	}
	ts, err := time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: parse updated_at %q: %w", updatedAt, err)
	}
	entry.UpdatedAt = ts
	return &entry, nil
}

// Only STARTED rows carry a payload; the rest store NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
