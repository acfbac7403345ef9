package actor

import (
	"context"
	"errors"
	"fmt"
)

// ErrAskTimeout is returned by Ask when no reply arrives before the context
// deadline. The target keeps processing; only the waiting caller gives up.
var ErrAskTimeout = errors.New("actor: ask timed out")

// ErrNotDelivered is returned by Ask when the target refused the message.
var ErrNotDelivered = errors.New("actor: message not delivered")

// Replier is a reply handle carried inside a request message.
type Replier[T any] interface {
	Reply(v T)
}

// ReplyFunc adapts a function to Replier.
type ReplyFunc[T any] func(v T)

func (f ReplyFunc[T]) Reply(v T) { f(v) }

// Adapt returns a Replier that wraps the reply into a message of the
// receiving actor's own protocol and tells it to ref. The wrap closure is the
// place to attach correlation data such as an order id.
func Adapt[T, C any](ref Teller[C], wrap func(T) C) Replier[T] {
	return ReplyFunc[T](func(v T) {
		ref.Tell(wrap(v))
	})
}

// Discard is a Replier that drops the reply.
func Discard[T any]() Replier[T] {
	return ReplyFunc[T](func(T) {})
}

// Ask sends the message built by build to target and waits for the first
// reply or ctx expiry.
func Ask[C, R any](ctx context.Context, target Teller[C], build func(replyTo Replier[R]) C) (R, error) {
	replies := make(chan R, 1)
	replyTo := ReplyFunc[R](func(v R) {
		select {
		case replies <- v:
		default:
		}
	})

	var zero R
	if !target.Tell(build(replyTo)) {
		return zero, ErrNotDelivered
	}

	select {
	case v := <-replies:
		return v, nil
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", ErrAskTimeout, ctx.Err())
	}
}
