package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/marketplace-sagas/internal/api-gateway/core/domain/entity"
	"github.com/jcmexdev/marketplace-sagas/internal/api-gateway/core/ports"
	"github.com/jcmexdev/marketplace-sagas/internal/coordinator"
	inventoryservice "github.com/jcmexdev/marketplace-sagas/internal/inventory-service"
	invdomain "github.com/jcmexdev/marketplace-sagas/internal/inventory-service/domain"
	orderapp "github.com/jcmexdev/marketplace-sagas/internal/order-service/app"
	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
)

// Ensure Gateway implements the port at compile time.
var _ ports.Marketplace = (*Gateway)(nil)

var tracer = otel.Tracer("marketplace/gateway")

// Gateway translates marketplace calls into messages. Lookups go straight to
// the owning entity; order creation and cancellation go through a worker pool.
//
// Order ids come from a single in-process counter starting at 0. Two gateway
// instances would hand out the same ids.
type Gateway struct {
	products     *inventoryservice.Directory
	orders       *orderapp.Directory
	placement    actor.Teller[coordinator.PlacementCommand]
	cancellation actor.Teller[coordinator.CancellationCommand]
	askTimeout   time.Duration
	nextOrderID  atomic.Int64
	logger       *slog.Logger
}

type Config struct {
	Products     *inventoryservice.Directory
	Orders       *orderapp.Directory
	Placement    actor.Teller[coordinator.PlacementCommand]
	Cancellation actor.Teller[coordinator.CancellationCommand]
	AskTimeout   time.Duration
	Logger       *slog.Logger
}

func NewGateway(cfg Config) *Gateway {
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		products:     cfg.Products,
		orders:       cfg.Orders,
		placement:    cfg.Placement,
		cancellation: cfg.Cancellation,
		askTimeout:   cfg.AskTimeout,
		logger:       cfg.Logger.With(slog.String("component", "gateway")),
	}
}

func (g *Gateway) GetProduct(ctx context.Context, productID int) (*invdomain.Product, error) {
	ctx, span := tracer.Start(ctx, "gateway.GetProduct", trace.WithAttributes(attribute.Int("product_id", productID)))
	defer span.End()

	p, err := ask(ctx, g.askTimeout, g.products.Resolve(inventoryservice.Key(productID)),
		func(r actor.Replier[*invdomain.Product]) inventoryservice.Command {
			return inventoryservice.GetInfo{ReplyTo: r}
		})
	if err != nil {
		return nil, g.fail(ctx, span, "GetProduct", err)
	}
	if p == nil {
		return nil, fmt.Errorf("product %d: %w", productID, entity.ErrNotFound)
	}
	return p, nil
}

func (g *Gateway) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	order.OrderID = int(g.nextOrderID.Add(1) - 1)

	ctx, span := tracer.Start(ctx, "gateway.CreateOrder", trace.WithAttributes(
		attribute.Int("order_id", order.OrderID),
		attribute.Int("user_id", order.UserID),
	))
	defer span.End()

	placed, err := ask(ctx, g.askTimeout, g.placement, func(r actor.Replier[*domain.Order]) coordinator.PlacementCommand {
		return coordinator.PlaceOrder{Order: order, ReplyTo: r, Trace: span.SpanContext()}
	})
	if err != nil {
		return nil, g.fail(ctx, span, "CreateOrder", err)
	}
	if placed == nil {
		span.SetStatus(codes.Error, "rejected")
		return nil, fmt.Errorf("order %d: %w", order.OrderID, entity.ErrRejected)
	}
	return placed, nil
}

func (g *Gateway) GetOrder(ctx context.Context, orderID int) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "gateway.GetOrder", trace.WithAttributes(attribute.Int("order_id", orderID)))
	defer span.End()

	o, err := ask(ctx, g.askTimeout, g.orders.Resolve(orderapp.Key(orderID)),
		func(r actor.Replier[*domain.Order]) orderapp.Command {
			return orderapp.Get{ReplyTo: r}
		})
	if err != nil {
		return nil, g.fail(ctx, span, "GetOrder", err)
	}
	if o == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, entity.ErrNotFound)
	}
	return o, nil
}

func (g *Gateway) UpdateOrder(ctx context.Context, orderID int, order domain.Order) (bool, error) {
	if orderID != order.OrderID {
		return false, fmt.Errorf("%w: path order id %d does not match body order id %d",
			entity.ErrInvalidRequest, orderID, order.OrderID)
	}

	ctx, span := tracer.Start(ctx, "gateway.UpdateOrder", trace.WithAttributes(
		attribute.Int("order_id", orderID),
		attribute.String("status", string(order.Status)),
	))
	defer span.End()

	ok, err := ask(ctx, g.askTimeout, g.orders.Resolve(orderapp.Key(orderID)),
		func(r actor.Replier[bool]) orderapp.Command {
			return orderapp.UpdateStatus{Desired: order, ReplyTo: r}
		})
	if err != nil {
		return false, g.fail(ctx, span, "UpdateOrder", err)
	}
	return ok, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, orderID int) (bool, error) {
	ctx, span := tracer.Start(ctx, "gateway.CancelOrder", trace.WithAttributes(attribute.Int("order_id", orderID)))
	defer span.End()

	ok, err := ask(ctx, g.askTimeout, g.cancellation, func(r actor.Replier[bool]) coordinator.CancellationCommand {
		return coordinator.CancelOrder{OrderID: orderID, ReplyTo: r, Trace: span.SpanContext()}
	})
	if err != nil {
		return false, g.fail(ctx, span, "CancelOrder", err)
	}
	return ok, nil
}

func (g *Gateway) fail(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	g.logger.WarnContext(ctx, "gateway request failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return err
}

// ask bounds a request/reply by timeout and maps actor errors onto the
// gateway's error set. A timeout does not stop the work in flight.
func ask[C, R any](ctx context.Context, timeout time.Duration, target actor.Teller[C], build func(actor.Replier[R]) C) (R, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := actor.Ask(ctx, target, build)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, actor.ErrAskTimeout):
		return v, fmt.Errorf("%w: %w", entity.ErrTimeout, err)
	case errors.Is(err, actor.ErrNotDelivered):
		return v, fmt.Errorf("%w: %w", entity.ErrUnavailable, err)
	default:
		return v, err
	}
}
