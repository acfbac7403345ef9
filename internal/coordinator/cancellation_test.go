package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderapp "github.com/jcmexdev/marketplace-sagas/internal/order-service/app"
	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
	userservice "github.com/jcmexdev/marketplace-sagas/internal/user-service/app"

	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/events"
)

func TestCancellation_RestocksRefundsAndIsFinal(t *testing.T) {
	h := newHarness(t, newFakeUsers(userservice.User{ID: 1}), product(1, 100, 10))

	placed := h.place(t, domain.Order{OrderID: 1, UserID: 1, Items: []domain.OrderItem{{ProductID: 1, Quantity: 2}}})
	require.NotNil(t, placed)
	require.Equal(t, 8, h.stock(t, 1))

	assert.True(t, h.cancel(t, 1))

	stored := h.order(t, 1)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Equal(t, 10, h.stock(t, 1))

	_, credits := h.wallets.snapshot()
	assert.Equal(t, []int{180}, credits)

	assert.False(t, h.cancel(t, 1), "a cancelled order cannot be cancelled again")
	_, credits = h.wallets.snapshot()
	assert.Equal(t, []int{180}, credits, "no second refund")
	assert.Equal(t, 10, h.stock(t, 1))

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{events.OrderPlaced, events.OrderCancelled}, h.events.types())
	}, time.Second, 10*time.Millisecond)
}

func TestCancellation_UnknownOrder(t *testing.T) {
	h := newHarness(t, newFakeUsers(userservice.User{ID: 1}), product(1, 100, 10))

	assert.False(t, h.cancel(t, 404))
	_, credits := h.wallets.snapshot()
	assert.Empty(t, credits)

	require.Eventually(t, func() bool {
		hist, _ := h.log.History(context.Background(), sagalog.SagaID(sagalog.KindCancellation, 404))
		return len(hist) == 2 && hist[1].Status == sagalog.StatusFailed
	}, time.Second, 10*time.Millisecond)
}

func TestCancellation_RefundFailureStillCancels(t *testing.T) {
	h := newHarness(t, newFakeUsers(userservice.User{ID: 1, DiscountAvailed: true}), product(1, 10, 5))
	require.NotNil(t, h.place(t, domain.Order{OrderID: 2, UserID: 1, Items: []domain.OrderItem{{ProductID: 1, Quantity: 1}}}))

	h.wallets.mu.Lock()
	h.wallets.creditErr = errWalletDown
	h.wallets.mu.Unlock()

	assert.True(t, h.cancel(t, 2))
	assert.Equal(t, 5, h.stock(t, 1))
	assert.Equal(t, domain.StatusCancelled, h.order(t, 2).Status)
}

func TestCancellation_DeliveredOrderIsRefused(t *testing.T) {
	h := newHarness(t, newFakeUsers(userservice.User{ID: 1, DiscountAvailed: true}), product(1, 10, 5))
	placed := h.place(t, domain.Order{OrderID: 3, UserID: 1, Items: []domain.OrderItem{{ProductID: 1, Quantity: 1}}})
	require.NotNil(t, placed)

	delivered := *placed
	delivered.Status = domain.StatusDelivered
	ok, err := actor.Ask(h.askCtx(t), h.orders.Resolve(orderapp.Key(3)), func(r actor.Replier[bool]) orderapp.Command {
		return orderapp.UpdateStatus{Desired: delivered, ReplyTo: r}
	})
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, h.cancel(t, 3))
	assert.Equal(t, 4, h.stock(t, 1))
}

func TestCancellationWorker_PendingGuard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orders := orderapp.NewDirectory(ctx, 2, discardLogger())
	worker := NewCancellationWorker(actor.NewRef[CancellationCommand]("unrun", discardLogger()), Deps{
		Orders:  orders,
		Wallets: &fakeWallets{},
		Logger:  discardLogger(),
	})

	var replies []bool
	reply := actor.ReplyFunc[bool](func(ok bool) { replies = append(replies, ok) })

	worker.Receive(ctx, CancelOrder{OrderID: 1, ReplyTo: reply})
	require.Empty(t, replies, "first cancellation waits for the order entity")

	worker.Receive(ctx, CancelOrder{OrderID: 1, ReplyTo: reply})
	require.Equal(t, []bool{false}, replies)
	assert.Equal(t, 1, worker.Pending())

	// A different order is not affected by the guard.
	worker.Receive(ctx, CancelOrder{OrderID: 2, ReplyTo: reply})
	assert.Equal(t, []bool{false}, replies)
	assert.Equal(t, 2, worker.Pending())
}

func TestCancellationWorker_LateRepliesIgnored(t *testing.T) {
	worker := NewCancellationWorker(actor.NewRef[CancellationCommand]("unrun", discardLogger()), Deps{
		Wallets: &fakeWallets{},
		Logger:  discardLogger(),
	})

	ctx := context.Background()
	worker.Receive(ctx, cancelReplied{orderID: 5, ok: true})
	worker.Receive(ctx, orderDetail{orderID: 5, order: &domain.Order{OrderID: 5}})
	assert.Zero(t, worker.Pending())
}
