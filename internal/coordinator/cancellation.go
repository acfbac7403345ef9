package coordinator

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	orderapp "github.com/jcmexdev/marketplace-sagas/internal/order-service/app"
	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"

	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/events"
)

// CancellationCommand is a message accepted by a cancellation worker.
type CancellationCommand interface {
	isCancellationCommand()
}

// CancelOrder starts a cancellation saga. The reply tells whether the order
// was cancelled.
type CancelOrder struct {
	OrderID int
	ReplyTo actor.Replier[bool]
	Trace   trace.SpanContext
}

type cancelReplied struct {
	orderID int
	ok      bool
}

type orderDetail struct {
	orderID int
	order   *domain.Order
}

func (CancelOrder) isCancellationCommand()   {}
func (cancelReplied) isCancellationCommand() {}
func (orderDetail) isCancellationCommand()   {}

type cancellationSaga struct {
	replyTo actor.Replier[bool]
	ctx     context.Context
	span    trace.Span
	started time.Time
}

// CancellationWorker runs cancellation sagas. Two cancellations of the same
// order on one worker are refused; nothing stops two workers from racing, in
// which case the order entity lets only one of them win.
type CancellationWorker struct {
	self    actor.Teller[CancellationCommand]
	deps    Deps
	logger  *slog.Logger
	pending map[int]*cancellationSaga
}

func NewCancellationWorker(self actor.Teller[CancellationCommand], deps Deps) *CancellationWorker {
	deps = deps.withDefaults()
	return &CancellationWorker{
		self:    self,
		deps:    deps,
		logger:  deps.Logger.With(slog.String("component", "cancellation-worker")),
		pending: make(map[int]*cancellationSaga),
	}
}

// Pending returns the number of cancellations awaiting entity replies.
func (w *CancellationWorker) Pending() int { return len(w.pending) }

func (w *CancellationWorker) Receive(ctx context.Context, msg CancellationCommand) {
	switch m := msg.(type) {
	case CancelOrder:
		w.onCancelOrder(ctx, m)
	case cancelReplied:
		w.onCancelReplied(m)
	case orderDetail:
		w.onOrderDetail(m)
	default:
		w.logger.WarnContext(ctx, "unknown cancellation command")
	}
}

func (w *CancellationWorker) onCancelOrder(ctx context.Context, m CancelOrder) {
	id := m.OrderID
	if _, busy := w.pending[id]; busy {
		w.logger.WarnContext(ctx, "cancellation already pending", slog.Int("order_id", id))
		m.ReplyTo.Reply(false)
		return
	}

	sagaCtx := context.WithoutCancel(ctx)
	if m.Trace.IsValid() {
		sagaCtx = trace.ContextWithRemoteSpanContext(sagaCtx, m.Trace)
	}
	sagaCtx, span := otel.Tracer("marketplace/coordinator").Start(sagaCtx, "saga.cancellation",
		trace.WithAttributes(attribute.Int("order_id", id)))

	w.pending[id] = &cancellationSaga{replyTo: m.ReplyTo, ctx: sagaCtx, span: span, started: time.Now()}
	observeStart(sagaCancellation)
	record(sagaCtx, w.deps, sagalog.NewEntry(sagaCtx, sagalog.SagaID(sagalog.KindCancellation, id), sagalog.StatusStarted, stepCancelOrder,
		`{"order_id":`+strconv.Itoa(id)+`}`, nil))

	replyTo := actor.Adapt(w.self, func(r orderapp.CancelResult) CancellationCommand {
		return cancelReplied{orderID: id, ok: r.OK}
	})
	if !w.deps.Orders.Tell(orderapp.Key(id), orderapp.Cancel{ReplyTo: replyTo}) {
		w.refuse(id, "order entity unavailable")
	}
}

func (w *CancellationWorker) onCancelReplied(m cancelReplied) {
	s, ok := w.pending[m.orderID]
	if !ok {
		w.logger.Debug("late cancel reply ignored", slog.Int("order_id", m.orderID))
		return
	}
	if !m.ok {
		w.refuse(m.orderID, "order absent or not PLACED")
		return
	}
	record(s.ctx, w.deps, sagalog.NewEntry(s.ctx, sagalog.SagaID(sagalog.KindCancellation, m.orderID), sagalog.StatusStepDone, stepCancelOrder, "", nil))

	id := m.orderID
	replyTo := actor.Adapt(w.self, func(o *domain.Order) CancellationCommand {
		return orderDetail{orderID: id, order: o}
	})
	if !w.deps.Orders.Tell(orderapp.Key(id), orderapp.GetForCancellation{ReplyTo: replyTo}) {
		// The entity already moved to CANCELLED, so the caller still gets true.
		w.logger.ErrorContext(s.ctx, "order detail unavailable, nothing restocked or refunded", slog.Int("order_id", id))
		w.complete(id, nil, false)
	}
}

func (w *CancellationWorker) onOrderDetail(m orderDetail) {
	s, ok := w.pending[m.orderID]
	if !ok {
		w.logger.Debug("late order detail ignored", slog.Int("order_id", m.orderID))
		return
	}
	if m.order == nil {
		w.logger.ErrorContext(s.ctx, "cancelled order has no detail", slog.Int("order_id", m.orderID))
		w.complete(m.orderID, nil, false)
		return
	}

	steps := make([]Compensation, 0, len(m.order.Items)+1)
	for _, it := range m.order.Items {
		steps = append(steps, NewRestockStep(w.deps.Products, it.ProductID, it.Quantity))
	}
	steps = append(steps, NewRefundStep(w.deps.Wallets, m.order.UserID, m.order.TotalPrice))

	refundOK := true
	for _, step := range steps {
		if err := step.Compensate(s.ctx); err != nil {
			w.logger.WarnContext(s.ctx, "cancellation step failed",
				slog.Int("order_id", m.orderID),
				slog.String("step", step.Name()),
				slog.String("error", err.Error()),
			)
			if step.Name() == stepRefundWallet {
				refundOK = false
			}
		}
	}
	w.complete(m.orderID, m.order, refundOK)
}

// complete replies true. The order entity is CANCELLED at this point whatever
// happened to the restock and refund.
func (w *CancellationWorker) complete(id int, order *domain.Order, refundOK bool) {
	s := w.pending[id]
	s.replyTo.Reply(true)

	data := OrderCancelledData{OrderID: id}
	if order != nil {
		data.UserID = order.UserID
		data.Refunded = order.TotalPrice
		data.RefundOK = refundOK
		data.Restocked = order.Items
	}
	publish(s.ctx, w.deps, events.OrderCancelled, id, data)
	record(s.ctx, w.deps, sagalog.NewEntry(s.ctx, sagalog.SagaID(sagalog.KindCancellation, id), sagalog.StatusCompleted, stepRefundWallet, "", nil))

	w.logger.InfoContext(s.ctx, "order cancelled",
		slog.Int("order_id", id),
		slog.Bool("refund_ok", refundOK),
	)
	observeEnd(sagaCancellation, outcomeCompleted, s.started)
	s.span.End()
	delete(w.pending, id)
}

func (w *CancellationWorker) refuse(id int, reason string) {
	s := w.pending[id]
	s.replyTo.Reply(false)
	record(s.ctx, w.deps, sagalog.NewEntry(s.ctx, sagalog.SagaID(sagalog.KindCancellation, id), sagalog.StatusFailed, stepCancelOrder, "", []string{reason}))

	w.logger.InfoContext(s.ctx, "cancellation refused", slog.Int("order_id", id), slog.String("reason", reason))
	s.span.SetStatus(codes.Error, reason)
	s.span.End()
	observeEnd(sagaCancellation, outcomeRejected, s.started)
	delete(w.pending, id)
}
