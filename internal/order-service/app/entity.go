package app

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/sharding"
)

const EntityType = "order"

// Command is a message accepted by an order entity.
type Command interface {
	isOrderCommand()
}

// Initialize binds a freshly placed order. Sent only by the placement saga.
type Initialize struct {
	Order domain.Order
}

// Get replies with a snapshot of the order, or nil if none is bound.
type Get struct {
	ReplyTo actor.Replier[*domain.Order]
}

// UpdateStatus moves a PLACED order to DELIVERED. Any other request fails.
type UpdateStatus struct {
	Desired domain.Order
	ReplyTo actor.Replier[bool]
}

// Cancel moves a PLACED order to CANCELLED.
type Cancel struct {
	ReplyTo actor.Replier[CancelResult]
}

// GetForCancellation replies with the full order after a successful Cancel.
type GetForCancellation struct {
	ReplyTo actor.Replier[*domain.Order]
}

// CancelResult carries the order id so a worker juggling several
// cancellations can correlate the reply.
type CancelResult struct {
	OrderID int
	OK      bool
}

func (Initialize) isOrderCommand()         {}
func (Get) isOrderCommand()                {}
func (UpdateStatus) isOrderCommand()       {}
func (Cancel) isOrderCommand()             {}
func (GetForCancellation) isOrderCommand() {}

type Directory = sharding.Directory[Command]

func Key(orderID int) string { return strconv.Itoa(orderID) }

// NewDirectory creates the order entity directory.
func NewDirectory(ctx context.Context, shards int, logger *slog.Logger) *Directory {
	logger = logger.With(slog.String("component", "order-entity"))
	return sharding.New(ctx, EntityType, shards, func(key string, _ *actor.Ref[Command]) actor.Behavior[Command] {
		return newEntity(key, logger)
	}, logger)
}

type entity struct {
	id     int
	order  *domain.Order
	logger *slog.Logger
}

func newEntity(key string, logger *slog.Logger) *entity {
	id, _ := strconv.Atoi(key)
	return &entity{id: id, logger: logger.With(slog.String("order_id", key))}
}

func (e *entity) Receive(ctx context.Context, msg Command) {
	switch m := msg.(type) {
	case Initialize:
		e.initialize(ctx, m.Order)
	case Get:
		m.ReplyTo.Reply(e.order.Clone())
	case UpdateStatus:
		m.ReplyTo.Reply(e.updateStatus(ctx, m.Desired))
	case Cancel:
		m.ReplyTo.Reply(CancelResult{OrderID: e.id, OK: e.transition(ctx, domain.StatusCancelled)})
	case GetForCancellation:
		m.ReplyTo.Reply(e.order.Clone())
	default:
		e.logger.WarnContext(ctx, "unknown order command")
	}
}

func (e *entity) initialize(ctx context.Context, o domain.Order) {
	if e.order != nil {
		e.logger.WarnContext(ctx, "order already initialized, ignoring")
		return
	}
	o.Status = domain.StatusPlaced
	e.order = o.Clone()
	e.logger.DebugContext(ctx, "order created", slog.Int("total_price", o.TotalPrice))
}

func (e *entity) updateStatus(ctx context.Context, desired domain.Order) bool {
	if desired.Status != domain.StatusDelivered {
		e.logger.DebugContext(ctx, "status update refused", slog.String("desired", string(desired.Status)))
		return false
	}
	return e.transition(ctx, domain.StatusDelivered)
}

func (e *entity) transition(ctx context.Context, next domain.OrderStatus) bool {
	if e.order == nil || !e.order.Status.CanTransition(next) {
		e.logger.DebugContext(ctx, "transition refused", slog.String("to", string(next)))
		return false
	}
	e.logger.DebugContext(ctx, "status changed",
		slog.String("from", string(e.order.Status)),
		slog.String("to", string(next)),
	)
	e.order.Status = next
	return true
}
