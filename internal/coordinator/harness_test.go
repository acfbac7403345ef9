package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	inventoryservice "github.com/jcmexdev/marketplace-sagas/internal/inventory-service"
	invdomain "github.com/jcmexdev/marketplace-sagas/internal/inventory-service/domain"
	orderapp "github.com/jcmexdev/marketplace-sagas/internal/order-service/app"
	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
	userservice "github.com/jcmexdev/marketplace-sagas/internal/user-service/app"

	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog/memory"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/events"
)

var errWalletDown = errors.New("wallet service down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes ---

type fakeUsers struct {
	mu          sync.Mutex
	users       map[int]*userservice.User
	lookups     int
	discounts   []int
	discountErr error
}

func newFakeUsers(users ...userservice.User) *fakeUsers {
	f := &fakeUsers{users: make(map[int]*userservice.User)}
	for _, u := range users {
		u := u
		f.users[u.ID] = &u
	}
	return f
}

func (f *fakeUsers) GetUser(_ context.Context, id int) (*userservice.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", userservice.ErrUserNotFound, id)
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetDiscountAvailed(_ context.Context, id int, availed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discounts = append(f.discounts, id)
	if f.discountErr != nil {
		return f.discountErr
	}
	if u, ok := f.users[id]; ok {
		u.DiscountAvailed = availed
	}
	return nil
}

func (f *fakeUsers) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

type fakeWallets struct {
	mu        sync.Mutex
	debits    []int
	credits   []int
	debitErr  error
	creditErr error
	// onDebit runs inside Debit before it returns.
	onDebit func()
}

func (f *fakeWallets) Debit(_ context.Context, _ int, amount int) error {
	if f.onDebit != nil {
		f.onDebit()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return f.debitErr
	}
	f.debits = append(f.debits, amount)
	return nil
}

func (f *fakeWallets) Credit(_ context.Context, _ int, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credits = append(f.credits, amount)
	return f.creditErr
}

func (f *fakeWallets) snapshot() (debits, credits []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.debits...), append([]int(nil), f.credits...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// silentProducts accepts every message and never replies, leaving the
// worker waiting so tests can drive replies by hand.
type silentProducts struct {
	mu   sync.Mutex
	sent []inventoryservice.Command
}

func (s *silentProducts) Tell(_ string, msg inventoryservice.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return true
}

// --- harness ---

type harness struct {
	ctx          context.Context
	products     *inventoryservice.Directory
	orders       *orderapp.Directory
	users        *fakeUsers
	wallets      *fakeWallets
	log          *memory.Repository
	events       *recordingPublisher
	placement    *PlacementPool
	cancellation *CancellationPool
}

func newHarness(t *testing.T, users *fakeUsers, products ...invdomain.Product) *harness {
	t.Helper()
	return newHarnessWithWallets(t, users, &fakeWallets{}, products...)
}

// newHarnessWithWallets runs the pools against any wallet service. h.wallets
// is only set when wallets is a *fakeWallets.
func newHarnessWithWallets(t *testing.T, users *fakeUsers, wallets WalletService, products ...invdomain.Product) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := discardLogger()
	h := &harness{
		ctx:      ctx,
		products: inventoryservice.NewDirectory(ctx, 4, logger),
		orders:   orderapp.NewDirectory(ctx, 4, logger),
		users:    users,
		log:      memory.New(),
		events:   &recordingPublisher{},
	}
	if fw, ok := wallets.(*fakeWallets); ok {
		h.wallets = fw
	}
	inventoryservice.Bootstrap(h.products, products)

	deps := Deps{
		Products: h.products,
		Orders:   h.orders,
		Users:    h.users,
		Wallets:  wallets,
		SagaLog:  h.log,
		Events:   h.events,
		Logger:   logger,
	}
	h.placement = NewPlacementPool(ctx, 2, deps)
	h.cancellation = NewCancellationPool(ctx, 2, deps)
	return h
}

func (h *harness) askCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (h *harness) place(t *testing.T, order domain.Order) *domain.Order {
	t.Helper()
	got, err := actor.Ask(h.askCtx(t), h.placement, func(r actor.Replier[*domain.Order]) PlacementCommand {
		return PlaceOrder{Order: order, ReplyTo: r}
	})
	require.NoError(t, err)
	return got
}

func (h *harness) cancel(t *testing.T, orderID int) bool {
	t.Helper()
	ok, err := actor.Ask(h.askCtx(t), h.cancellation, func(r actor.Replier[bool]) CancellationCommand {
		return CancelOrder{OrderID: orderID, ReplyTo: r}
	})
	require.NoError(t, err)
	return ok
}

func (h *harness) stock(t *testing.T, productID int) int {
	t.Helper()
	p, err := actor.Ask(h.askCtx(t), h.products.Resolve(inventoryservice.Key(productID)), func(r actor.Replier[*invdomain.Product]) inventoryservice.Command {
		return inventoryservice.GetInfo{ReplyTo: r}
	})
	require.NoError(t, err)
	require.NotNil(t, p, "product %d", productID)
	return p.StockQuantity
}

func (h *harness) order(t *testing.T, orderID int) *domain.Order {
	t.Helper()
	o, err := actor.Ask(h.askCtx(t), h.orders.Resolve(orderapp.Key(orderID)), func(r actor.Replier[*domain.Order]) orderapp.Command {
		return orderapp.Get{ReplyTo: r}
	})
	require.NoError(t, err)
	return o
}

func product(id, price, stock int) invdomain.Product {
	return invdomain.Product{ID: id, Name: fmt.Sprintf("product-%d", id), Price: price, StockQuantity: stock}
}
