package actor

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mailbox is an unbounded FIFO inbox. Push never blocks, so two actors that
// message each other cannot deadlock on a full buffer.
type Mailbox[T any] struct {
	mu      sync.Mutex
	backlog []T
	notify  chan struct{}
	closed  atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{notify: make(chan struct{}, 1)}
}

// Push appends msg to the backlog. It returns false once the mailbox is
// closed. A message accepted by Push is always delivered by Pop.
func (m *Mailbox[T]) Push(msg T) bool {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return false
	}
	m.backlog = append(m.backlog, msg)
	m.mu.Unlock()
	m.enqueued.Add(1)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop blocks until a message is available, the mailbox is closed and drained,
// or ctx is done.
func (m *Mailbox[T]) Pop(ctx context.Context) (T, bool) {
	for {
		msg, ok, closed := m.tryPop()
		if ok {
			m.processed.Add(1)
			return msg, true
		}
		if closed {
			return msg, false
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-m.notify:
		}
	}
}

// tryPop reads the backlog and the closed flag under one lock, so a drained
// and closed mailbox can never hide a message pushed just before Close.
func (m *Mailbox[T]) tryPop() (msg T, ok, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.backlog) == 0 {
		return msg, false, m.closed.Load()
	}
	msg = m.backlog[0]
	var zero T
	m.backlog[0] = zero
	m.backlog = m.backlog[1:]
	return msg, true, false
}

// Len returns the number of messages waiting to be processed.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backlog)
}

// Close disallows future pushes. Messages already queued can still be popped.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed.Store(true)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// IsClosed reports whether Close has been called.
func (m *Mailbox[T]) IsClosed() bool { return m.closed.Load() }

// Metrics returns enqueue/processed counters and the current backlog size.
func (m *Mailbox[T]) Metrics() (enq, proc uint64, backlog int) {
	return m.enqueued.Load(), m.processed.Load(), m.Len()
}
