package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/marketplace-sagas/internal/api-gateway/core/domain/entity"
	"github.com/jcmexdev/marketplace-sagas/internal/coordinator"
	inventoryservice "github.com/jcmexdev/marketplace-sagas/internal/inventory-service"
	invdomain "github.com/jcmexdev/marketplace-sagas/internal/inventory-service/domain"
	orderapp "github.com/jcmexdev/marketplace-sagas/internal/order-service/app"
	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
	userservice "github.com/jcmexdev/marketplace-sagas/internal/user-service/app"
)

type stubUsers struct{}

func (stubUsers) GetUser(_ context.Context, id int) (*userservice.User, error) {
	return &userservice.User{ID: id, DiscountAvailed: true}, nil
}

func (stubUsers) SetDiscountAvailed(context.Context, int, bool) error { return nil }

type stubWallets struct{}

func (stubWallets) Debit(context.Context, int, int) error  { return nil }
func (stubWallets) Credit(context.Context, int, int) error { return nil }

func newTestGateway(t *testing.T) (*Gateway, *orderapp.Directory) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	products := inventoryservice.NewDirectory(ctx, 2, logger)
	orders := orderapp.NewDirectory(ctx, 2, logger)
	inventoryservice.Bootstrap(products, []invdomain.Product{{ID: 1, Name: "pen", Price: 10, StockQuantity: 3}})

	deps := coordinator.Deps{Products: products, Orders: orders, Users: stubUsers{}, Wallets: stubWallets{}, Logger: logger}
	g := NewGateway(Config{
		Products:     products,
		Orders:       orders,
		Placement:    coordinator.NewPlacementPool(ctx, 2, deps),
		Cancellation: coordinator.NewCancellationPool(ctx, 2, deps),
		AskTimeout:   time.Second,
		Logger:       logger,
	})
	return g, orders
}

func TestGateway_GetProduct(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	p, err := g.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "pen", p.Name)

	_, err = g.GetProduct(ctx, 2)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestGateway_OrderLifecycle(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	first, err := g.CreateOrder(ctx, domain.Order{UserID: 1, Items: []domain.OrderItem{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, 0, first.OrderID)
	assert.Equal(t, 10, first.TotalPrice)

	second, err := g.CreateOrder(ctx, domain.Order{UserID: 1, Items: []domain.OrderItem{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, 1, second.OrderID)

	_, err = g.CreateOrder(ctx, domain.Order{UserID: 1, Items: []domain.OrderItem{{ProductID: 1, Quantity: 5}}})
	assert.ErrorIs(t, err, entity.ErrRejected)

	got, err := g.GetOrder(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlaced, got.Status)

	_, err = g.GetOrder(ctx, 99)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	delivered := *got
	delivered.Status = domain.StatusDelivered
	ok, err := g.UpdateOrder(ctx, 0, delivered)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.CancelOrder(ctx, 0)
	require.NoError(t, err)
	assert.False(t, ok, "delivered orders cannot be cancelled")

	ok, err = g.CancelOrder(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateway_UpdateOrderIDMismatch(t *testing.T) {
	g, orders := newTestGateway(t)

	ok, err := g.UpdateOrder(context.Background(), 3, domain.Order{OrderID: 4, Status: domain.StatusDelivered})
	assert.False(t, ok)
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	assert.Zero(t, orders.Len(), "no entity contacted")
}

func TestGateway_Timeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	silent := actor.Spawn(ctx, "silent", logger, func(*actor.Ref[coordinator.PlacementCommand]) actor.Behavior[coordinator.PlacementCommand] {
		return actor.BehaviorFunc[coordinator.PlacementCommand](func(context.Context, coordinator.PlacementCommand) {})
	})
	g := NewGateway(Config{Placement: silent, AskTimeout: 20 * time.Millisecond, Logger: logger})

	_, err := g.CreateOrder(ctx, domain.Order{UserID: 1, Items: []domain.OrderItem{{ProductID: 1, Quantity: 1}}})
	assert.ErrorIs(t, err, entity.ErrTimeout)
}

func TestGateway_Unavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stopped := actor.NewRef[coordinator.CancellationCommand]("stopped", logger)
	stopped.Stop()
	g := NewGateway(Config{Cancellation: stopped, Logger: logger})

	_, err := g.CancelOrder(context.Background(), 1)
	assert.ErrorIs(t, err, entity.ErrUnavailable)
}
