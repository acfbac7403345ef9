package inventoryservice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/marketplace-sagas/internal/inventory-service/domain"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/actor"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewDirectory(ctx, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func getInfo(t *testing.T, dir *Directory, id int) *domain.Product {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := actor.Ask(ctx, dir.Resolve(Key(id)), func(r actor.Replier[*domain.Product]) Command {
		return GetInfo{ReplyTo: r}
	})
	require.NoError(t, err)
	return p
}

func decrease(t *testing.T, dir *Directory, id, qty int) domain.StockResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := actor.Ask(ctx, dir.Resolve(Key(id)), func(r actor.Replier[domain.StockResult]) Command {
		return DecreaseStock{Quantity: qty, ReplyTo: r}
	})
	require.NoError(t, err)
	return res
}

func TestProduct_UnknownIsAbsent(t *testing.T) {
	dir := newTestDirectory(t)
	assert.Nil(t, getInfo(t, dir, 404))

	res := decrease(t, dir, 404, 1)
	assert.False(t, res.OK)
	assert.Equal(t, 404, res.ProductID)
}

func TestProduct_InitializeFirstWriterWins(t *testing.T) {
	dir := newTestDirectory(t)
	dir.Tell(Key(1), Initialize{Product: domain.Product{ID: 1, Name: "first", Price: 100, StockQuantity: 10}})
	dir.Tell(Key(1), Initialize{Product: domain.Product{ID: 1, Name: "second", Price: 1, StockQuantity: 99}})

	p := getInfo(t, dir, 1)
	require.NotNil(t, p)
	assert.Equal(t, "first", p.Name)
	assert.Equal(t, 100, p.Price)
	assert.Equal(t, 10, p.StockQuantity)
}

func TestProduct_DecreaseAndIncrease(t *testing.T) {
	dir := newTestDirectory(t)
	dir.Tell(Key(1), Initialize{Product: domain.Product{ID: 1, Price: 100, StockQuantity: 5}})

	tests := []struct {
		name      string
		qty       int
		wantOK    bool
		wantStock int
	}{
		{name: "partial", qty: 2, wantOK: true, wantStock: 3},
		{name: "more than available", qty: 4, wantOK: false, wantStock: 3},
		{name: "exact remainder", qty: 3, wantOK: true, wantStock: 0},
		{name: "empty", qty: 1, wantOK: false, wantStock: 0},
		{name: "non-positive", qty: 0, wantOK: false, wantStock: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := decrease(t, dir, 1, tt.qty)
			assert.Equal(t, tt.wantOK, res.OK)
			assert.Equal(t, 1, res.ProductID)
			assert.Equal(t, tt.wantStock, getInfo(t, dir, 1).StockQuantity)
		})
	}

	dir.Tell(Key(1), IncreaseStock{Quantity: 7})
	assert.Equal(t, 7, getInfo(t, dir, 1).StockQuantity)
}

func TestProduct_SnapshotIsACopy(t *testing.T) {
	dir := newTestDirectory(t)
	dir.Tell(Key(2), Initialize{Product: domain.Product{ID: 2, StockQuantity: 3}})

	p := getInfo(t, dir, 2)
	p.StockQuantity = 1000
	assert.Equal(t, 3, getInfo(t, dir, 2).StockQuantity)
}

func TestProduct_StockNeverNegativeUnderConcurrency(t *testing.T) {
	dir := newTestDirectory(t)
	dir.Tell(Key(3), Initialize{Product: domain.Product{ID: 3, StockQuantity: 50}})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if decrease(t, dir, 3, 2).OK {
				mu.Lock()
				granted += 2
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, granted)
	assert.Zero(t, getInfo(t, dir, 3).StockQuantity)
}

func TestLoadCSV(t *testing.T) {
	in := strings.NewReader("id,name,description,price,stock_quantity\n" +
		"101, Pen , Blue ink,10,100\n" +
		"102,Book,\"Hardcover, 300 pages\",250,4\n")

	products, err := LoadCSV(in)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, domain.Product{ID: 101, Name: "Pen", Description: "Blue ink", Price: 10, StockQuantity: 100}, products[0])
	assert.Equal(t, "Hardcover, 300 pages", products[1].Description)
}

func TestLoadCSV_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "bad price", body: "h,h,h,h,h\n1,a,b,ten,1\n", want: "line 2"},
		{name: "negative stock", body: "h,h,h,h,h\n1,a,b,1,-1\n", want: "negative"},
		{name: "missing column", body: "h,h,h,h,h\n1,a,b,1\n", want: "catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBootstrap(t *testing.T) {
	dir := newTestDirectory(t)
	n := Bootstrap(dir, []domain.Product{
		{ID: 1, Name: "a", Price: 5, StockQuantity: 1},
		{ID: 2, Name: "b", Price: 7, StockQuantity: 2},
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, "b", getInfo(t, dir, 2).Name)
	assert.Equal(t, 2, dir.Len())
}
