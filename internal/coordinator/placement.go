package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	inventoryservice "github.com/jcmexdev/marketplace-sagas/internal/inventory-service"
	invdomain "github.com/jcmexdev/marketplace-sagas/internal/inventory-service/domain"
	orderapp "github.com/jcmexdev/marketplace-sagas/internal/order-service/app"
	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
	paymentservice "github.com/jcmexdev/marketplace-sagas/internal/payment-service/app"
	userservice "github.com/jcmexdev/marketplace-sagas/internal/user-service/app"

	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/events"
)

// PlacementCommand is a message accepted by a placement worker.
type PlacementCommand interface {
	isPlacementCommand()
}

// PlaceOrder starts a placement saga. The reply is the placed order, or nil
// if the order was rejected.
type PlaceOrder struct {
	Order   domain.Order
	ReplyTo actor.Replier[*domain.Order]
	// Trace links the saga span to the caller's span.
	Trace trace.SpanContext
}

type productInfoReceived struct {
	orderID   int
	productID int
	product   *invdomain.Product
}

type stockDecreased struct {
	orderID   int
	productID int
	ok        bool
}

func (PlaceOrder) isPlacementCommand()          {}
func (productInfoReceived) isPlacementCommand() {}
func (stockDecreased) isPlacementCommand()      {}

type placementPhase int

const (
	awaitingProducts placementPhase = iota
	awaitingStock
)

// placementSaga is the scratch state of one in-flight order.
type placementSaga struct {
	phase      placementPhase
	order      domain.Order
	replyTo    actor.Replier[*domain.Order]
	quantities map[int]int
	products   map[int]*invdomain.Product
	decrements map[int]bool
	user       *userservice.User
	discounted bool

	ctx     context.Context
	span    trace.Span
	started time.Time
}

// PlacementWorker runs placement sagas. It is stateless at rest: scratch
// state exists only while an order is in flight.
type PlacementWorker struct {
	self   actor.Teller[PlacementCommand]
	deps   Deps
	logger *slog.Logger
	sagas  map[int]*placementSaga
}

func NewPlacementWorker(self actor.Teller[PlacementCommand], deps Deps) *PlacementWorker {
	deps = deps.withDefaults()
	return &PlacementWorker{
		self:   self,
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "placement-worker")),
		sagas:  make(map[int]*placementSaga),
	}
}

// InFlight returns the number of orders holding scratch state.
func (w *PlacementWorker) InFlight() int { return len(w.sagas) }

func (w *PlacementWorker) Receive(ctx context.Context, msg PlacementCommand) {
	switch m := msg.(type) {
	case PlaceOrder:
		w.onPlaceOrder(ctx, m)
	case productInfoReceived:
		w.onProductInfo(m)
	case stockDecreased:
		w.onStockDecreased(m)
	default:
		w.logger.WarnContext(ctx, "unknown placement command")
	}
}

func (w *PlacementWorker) onPlaceOrder(ctx context.Context, m PlaceOrder) {
	order := m.Order
	id := order.OrderID

	if _, busy := w.sagas[id]; busy {
		w.logger.WarnContext(ctx, "duplicate placement for in-flight order", slog.Int("order_id", id))
		m.ReplyTo.Reply(nil)
		return
	}

	sagaCtx := context.WithoutCancel(ctx)
	if m.Trace.IsValid() {
		sagaCtx = trace.ContextWithRemoteSpanContext(sagaCtx, m.Trace)
	}
	sagaCtx, span := otel.Tracer("marketplace/coordinator").Start(sagaCtx, "saga.placement",
		trace.WithAttributes(attribute.Int("order_id", id), attribute.Int("user_id", order.UserID)))

	s := &placementSaga{
		phase:   awaitingProducts,
		replyTo: m.ReplyTo,
		ctx:     sagaCtx,
		span:    span,
		started: time.Now(),
	}
	w.sagas[id] = s
	observeStart(sagaPlacement)

	payload, _ := json.Marshal(order)
	record(sagaCtx, w.deps, sagalog.NewEntry(sagaCtx, sagalog.SagaID(sagalog.KindPlacement, id), sagalog.StatusStarted, stepAdmission, string(payload), nil))
	w.logger.InfoContext(sagaCtx, "placement started", slog.Int("order_id", id), slog.Int("items", len(order.Items)))

	if len(order.Items) == 0 {
		w.fail(id, stepAdmission, "empty items list")
		return
	}

	order.Items = domain.MergeItems(order.Items)
	for _, it := range order.Items {
		if it.Quantity <= 0 {
			w.fail(id, stepAdmission, fmt.Sprintf("non-positive quantity %d for product %d", it.Quantity, it.ProductID))
			return
		}
	}
	order.TotalPrice = 0
	order.Status = ""
	s.order = order
	s.quantities = make(map[int]int, len(order.Items))
	s.products = make(map[int]*invdomain.Product, len(order.Items))
	s.decrements = make(map[int]bool, len(order.Items))
	for _, it := range order.Items {
		s.quantities[it.ProductID] = it.Quantity
	}

	for _, it := range order.Items {
		productID := it.ProductID
		replyTo := actor.Adapt(w.self, func(p *invdomain.Product) PlacementCommand {
			return productInfoReceived{orderID: id, productID: productID, product: p}
		})
		if !w.deps.Products.Tell(inventoryservice.Key(productID), inventoryservice.GetInfo{ReplyTo: replyTo}) {
			w.fail(id, stepProductLookup, fmt.Sprintf("product %d unavailable", productID))
			return
		}
	}
}

func (w *PlacementWorker) onProductInfo(m productInfoReceived) {
	s, ok := w.sagas[m.orderID]
	if !ok || s.phase != awaitingProducts {
		w.logger.Debug("late product info ignored", slog.Int("order_id", m.orderID), slog.Int("product_id", m.productID))
		return
	}
	if m.product == nil {
		w.fail(m.orderID, stepProductLookup, fmt.Sprintf("unknown product %d", m.productID))
		return
	}
	s.products[m.productID] = m.product
	if len(s.products) < len(s.quantities) {
		return
	}

	ctx := s.ctx
	id := m.orderID

	total := 0
	for _, it := range s.order.Items {
		p := s.products[it.ProductID]
		if p.StockQuantity < it.Quantity {
			w.fail(id, stepValidateStock, fmt.Sprintf("insufficient stock for product %d: have %d, want %d",
				it.ProductID, p.StockQuantity, it.Quantity))
			return
		}
		total += it.Quantity * p.Price
	}

	user, err := w.deps.Users.GetUser(ctx, s.order.UserID)
	if err != nil {
		w.fail(id, stepResolveUser, err.Error())
		return
	}
	s.user = user

	if !user.DiscountAvailed {
		total -= total / 10
		s.discounted = true
	}
	s.order.TotalPrice = total

	if err := w.deps.Wallets.Debit(ctx, s.order.UserID, total); err != nil {
		if errors.Is(err, paymentservice.ErrOutcomeUnknown) {
			w.refundUnknownDebit(id, err)
			return
		}
		w.fail(id, stepDebitWallet, err.Error())
		return
	}
	record(ctx, w.deps, sagalog.NewEntry(ctx, sagalog.SagaID(sagalog.KindPlacement, id), sagalog.StatusStepDone, stepDebitWallet, "", nil))

	s.phase = awaitingStock
	for _, it := range s.order.Items {
		productID := it.ProductID
		replyTo := actor.Adapt(w.self, func(r invdomain.StockResult) PlacementCommand {
			return stockDecreased{orderID: id, productID: productID, ok: r.OK}
		})
		if !w.deps.Products.Tell(inventoryservice.Key(productID), inventoryservice.DecreaseStock{Quantity: it.Quantity, ReplyTo: replyTo}) {
			// Counts as a refused decrement so compensation still runs.
			w.self.Tell(stockDecreased{orderID: id, productID: productID, ok: false})
		}
	}
}

func (w *PlacementWorker) onStockDecreased(m stockDecreased) {
	s, ok := w.sagas[m.orderID]
	if !ok || s.phase != awaitingStock {
		w.logger.Debug("late stock reply ignored", slog.Int("order_id", m.orderID), slog.Int("product_id", m.productID))
		return
	}
	s.decrements[m.productID] = m.ok
	if len(s.decrements) < len(s.quantities) {
		return
	}

	for _, ok := range s.decrements {
		if !ok {
			w.compensate(m.orderID)
			return
		}
	}
	w.commit(m.orderID)
}

// compensate undoes the debit and every successful decrement, then rejects
// the order.
func (w *PlacementWorker) compensate(id int) {
	s := w.sagas[id]
	ctx := s.ctx
	sagaID := sagalog.SagaID(sagalog.KindPlacement, id)

	var refused []string
	steps := []Compensation{NewRefundStep(w.deps.Wallets, s.order.UserID, s.order.TotalPrice)}
	for _, it := range s.order.Items {
		if s.decrements[it.ProductID] {
			steps = append(steps, NewRestockStep(w.deps.Products, it.ProductID, it.Quantity))
		} else {
			refused = append(refused, fmt.Sprintf("product %d refused decrement of %d", it.ProductID, it.Quantity))
		}
	}

	record(ctx, w.deps, sagalog.NewEntry(ctx, sagaID, sagalog.StatusCompensating, stepDecreaseStock, "", refused))
	w.logger.InfoContext(ctx, "stock decrement failed, compensating",
		slog.Int("order_id", id),
		slog.Int("refund", s.order.TotalPrice),
	)

	errs := append(refused, rollback(ctx, w.logger, steps)...)
	w.finish(id, stepDecreaseStock, outcomeCompensated, errs)
}

// refundUnknownDebit credits back a debit whose outcome was lost in transit,
// so a rejected order never keeps the user's money.
func (w *PlacementWorker) refundUnknownDebit(id int, debitErr error) {
	s := w.sagas[id]
	ctx := s.ctx
	reason := debitErr.Error()

	record(ctx, w.deps, sagalog.NewEntry(ctx, sagalog.SagaID(sagalog.KindPlacement, id), sagalog.StatusCompensating, stepDebitWallet, "", []string{reason}))
	w.logger.WarnContext(ctx, "debit outcome unknown, refunding",
		slog.Int("order_id", id),
		slog.Int("refund", s.order.TotalPrice),
		slog.String("error", reason),
	)

	steps := []Compensation{NewRefundStep(w.deps.Wallets, s.order.UserID, s.order.TotalPrice)}
	errs := append([]string{reason}, rollback(ctx, w.logger, steps)...)
	w.finish(id, stepDebitWallet, outcomeCompensated, errs)
}

func (w *PlacementWorker) commit(id int) {
	s := w.sagas[id]
	ctx := s.ctx

	if s.discounted {
		if err := w.deps.Users.SetDiscountAvailed(ctx, s.order.UserID, true); err != nil {
			w.logger.WarnContext(ctx, "discount flag not updated",
				slog.Int("order_id", id),
				slog.Int("user_id", s.order.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.order.Status = domain.StatusPlaced
	if !w.deps.Orders.Tell(orderapp.Key(id), orderapp.Initialize{Order: s.order}) {
		w.logger.ErrorContext(ctx, "order entity unavailable at commit", slog.Int("order_id", id))
	}

	placed := s.order.Clone()
	s.replyTo.Reply(placed)

	publish(ctx, w.deps, events.OrderPlaced, id, OrderPlacedData{
		OrderID:         id,
		UserID:          placed.UserID,
		TotalPrice:      placed.TotalPrice,
		DiscountApplied: s.discounted,
		Items:           placed.Items,
	})
	record(ctx, w.deps, sagalog.NewEntry(ctx, sagalog.SagaID(sagalog.KindPlacement, id), sagalog.StatusCompleted, stepCommitOrder, "", nil))

	w.logger.InfoContext(ctx, "order placed",
		slog.Int("order_id", id),
		slog.Int("total_price", placed.TotalPrice),
		slog.Bool("discounted", s.discounted),
	)
	observeEnd(sagaPlacement, outcomeCompleted, s.started)
	s.span.End()
	delete(w.sagas, id)
}

// fail rejects an order before any entity was mutated.
func (w *PlacementWorker) fail(id int, step, reason string) {
	s := w.sagas[id]
	w.logger.InfoContext(s.ctx, "placement rejected",
		slog.Int("order_id", id),
		slog.String("step", step),
		slog.String("reason", reason),
	)
	w.finish(id, step, outcomeRejected, []string{reason})
}

// finish replies the empty order and discards the scratch state.
func (w *PlacementWorker) finish(id int, step, outcome string, errs []string) {
	s := w.sagas[id]
	s.replyTo.Reply(nil)
	record(s.ctx, w.deps, sagalog.NewEntry(s.ctx, sagalog.SagaID(sagalog.KindPlacement, id), sagalog.StatusFailed, step, "", errs))

	s.span.SetStatus(codes.Error, step)
	s.span.End()
	observeEnd(sagaPlacement, outcome, s.started)
	delete(w.sagas, id)
}
