package coordinator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/marketplace-sagas/internal/order-service/domain"
	paymentservice "github.com/jcmexdev/marketplace-sagas/internal/payment-service/app"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/httpclient"
	userservice "github.com/jcmexdev/marketplace-sagas/internal/user-service/app"
)

// slowWallet applies every transaction, then answers debits after delay.
type slowWallet struct {
	mu     sync.Mutex
	ledger []paymentservice.Transaction
	delay  time.Duration
}

func (s *slowWallet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var trx paymentservice.Transaction
	if err := json.NewDecoder(r.Body).Decode(&trx); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.ledger = append(s.ledger, trx)
	s.mu.Unlock()

	if trx.Action == paymentservice.ActionDebit {
		time.Sleep(s.delay)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *slowWallet) transactions() []paymentservice.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]paymentservice.Transaction(nil), s.ledger...)
}

func TestPlacement_SlowDebitIsRefunded(t *testing.T) {
	wallet := &slowWallet{delay: 150 * time.Millisecond}
	server := httptest.NewServer(wallet)
	t.Cleanup(server.Close)

	logger := discardLogger()
	doer := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.Config{Timeout: time.Second, MaxConnsPerHost: 4}),
		httpclient.DefaultCircuitBreakerConfig("wallets-slow-debit"),
		logger,
	)
	wallets := paymentservice.NewWalletClient(server.URL, doer, 50*time.Millisecond, logger)

	h := newHarnessWithWallets(t, newFakeUsers(userservice.User{ID: 1, DiscountAvailed: true}), wallets, product(1, 10, 5))

	placed := h.place(t, domain.Order{OrderID: 1, UserID: 1, Items: []domain.OrderItem{{ProductID: 1, Quantity: 2}}})

	assert.Nil(t, placed)
	assert.Equal(t, 5, h.stock(t, 1))
	assert.Nil(t, h.order(t, 1))

	require.Eventually(t, func() bool { return len(wallet.transactions()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []paymentservice.Transaction{
		{Action: paymentservice.ActionDebit, Amount: 20},
		{Action: paymentservice.ActionCredit, Amount: 20},
	}, wallet.transactions())
}
