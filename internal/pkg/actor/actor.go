// Package actor provides the sequential units of execution the marketplace is
// built from: every entity and every saga worker is a Ref with its own
// mailbox, processing exactly one message at a time.
//
// Units never share mutable memory. They talk by Tell (fire-and-forget) and
// reply through a Replier handed to them inside the message. A caller outside
// the actor system uses Ask to turn that exchange into a bounded
// request/reply.
package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Behavior handles the messages of one actor. Receive is never called
// concurrently for the same actor.
type Behavior[C any] interface {
	Receive(ctx context.Context, msg C)
}

// BehaviorFunc adapts a plain function to Behavior.
type BehaviorFunc[C any] func(ctx context.Context, msg C)

func (f BehaviorFunc[C]) Receive(ctx context.Context, msg C) { f(ctx, msg) }

// Teller is anything that accepts messages of type C: an actor ref or a
// router in front of several refs.
type Teller[C any] interface {
	Tell(msg C) bool
}

// Ref is the address of a single actor.
type Ref[C any] struct {
	name   string
	inbox  *Mailbox[C]
	logger *slog.Logger

	once sync.Once
	done chan struct{}
}

// NewRef creates an actor address with an empty mailbox. Messages told before
// Run is called are queued and processed once the actor starts.
func NewRef[C any](name string, logger *slog.Logger) *Ref[C] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ref[C]{
		name:   name,
		inbox:  NewMailbox[C](),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Spawn creates a ref and starts it with the behavior built by newBehavior,
// which receives the ref itself so the behavior can address replies to it.
func Spawn[C any](ctx context.Context, name string, logger *slog.Logger, newBehavior func(self *Ref[C]) Behavior[C]) *Ref[C] {
	ref := NewRef[C](name, logger)
	ref.Run(ctx, newBehavior(ref))
	return ref
}

// Name returns the actor name used in logs.
func (r *Ref[C]) Name() string { return r.name }

// Tell enqueues msg without waiting. It returns false if the actor is stopped.
func (r *Ref[C]) Tell(msg C) bool {
	ok := r.inbox.Push(msg)
	if !ok {
		r.logger.Debug("message dropped, actor stopped", slog.String("actor", r.name))
	}
	return ok
}

// Pending returns the number of queued messages.
func (r *Ref[C]) Pending() int { return r.inbox.Len() }

// Run starts the message loop in its own goroutine. Calling Run more than once
// has no effect.
func (r *Ref[C]) Run(ctx context.Context, b Behavior[C]) {
	r.once.Do(func() {
		go r.loop(ctx, b)
	})
}

// Stop closes the mailbox. Queued messages are still processed.
func (r *Ref[C]) Stop() { r.inbox.Close() }

// Done is closed when the message loop has exited.
func (r *Ref[C]) Done() <-chan struct{} { return r.done }

func (r *Ref[C]) loop(ctx context.Context, b Behavior[C]) {
	defer close(r.done)
	for {
		msg, ok := r.inbox.Pop(ctx)
		if !ok {
			return
		}
		r.handle(ctx, b, msg)
	}
}

// handle isolates a panicking handler so the actor survives for the next message.
func (r *Ref[C]) handle(ctx context.Context, b Behavior[C], msg C) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "actor message handler panicked",
				slog.String("actor", r.name),
				slog.String("message", fmt.Sprintf("%T", msg)),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	b.Receive(ctx, msg)
}
