// Package paymentservice talks to the external wallet service.
package paymentservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jcmexdev/marketplace-sagas/internal/pkg/httpclient"
)

const (
	ActionDebit  = "debit"
	ActionCredit = "credit"
)

// ErrUnexpectedStatus is returned when the wallet service answers with
// anything but 200.
var ErrUnexpectedStatus = errors.New("wallet service: unexpected status")

// ErrOutcomeUnknown marks a transaction that was sent but never answered
// with a status, or answered with a server error. The wallet may have applied it.
var ErrOutcomeUnknown = errors.New("wallet service: outcome unknown")

// Transaction is the body of PUT /wallets/{id}.
type Transaction struct {
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

// WalletClient debits and credits user wallets. Requests are never retried:
// a replayed debit could charge twice.
type WalletClient struct {
	baseURL string
	http    httpclient.Doer
	timeout time.Duration
	logger  *slog.Logger
}

func NewWalletClient(baseURL string, doer httpclient.Doer, timeout time.Duration, logger *slog.Logger) *WalletClient {
	return &WalletClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "wallet-client")),
	}
}

// Debit removes amount from the user's wallet.
func (c *WalletClient) Debit(ctx context.Context, userID, amount int) error {
	return c.put(ctx, userID, Transaction{Action: ActionDebit, Amount: amount})
}

// Credit returns amount to the user's wallet.
func (c *WalletClient) Credit(ctx context.Context, userID, amount int) error {
	return c.put(ctx, userID, Transaction{Action: ActionCredit, Amount: amount})
}

func (c *WalletClient) put(ctx context.Context, userID int, trx Transaction) error {
	ctx, span := otel.Tracer("marketplace/wallets").Start(ctx, "wallet."+trx.Action)
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", userID), attribute.Int("amount", trx.Amount))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(trx)
	if err != nil {
		return fmt.Errorf("wallet service: marshal transaction: %w", err)
	}
	url := c.baseURL + "/wallets/" + strconv.Itoa(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("wallet service: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "wallet request failed")
		if httpclient.Rejected(err) {
			return fmt.Errorf("wallet service: %s user %d: %w", trx.Action, userID, err)
		}
		return fmt.Errorf("%w: %s user %d: %w", ErrOutcomeUnknown, trx.Action, userID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		span.SetStatus(codes.Error, resp.Status)
		return fmt.Errorf("%w: %s user %d got %d", ErrOutcomeUnknown, trx.Action, userID, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		span.SetStatus(codes.Error, resp.Status)
		return fmt.Errorf("%w: %s user %d got %d", ErrUnexpectedStatus, trx.Action, userID, resp.StatusCode)
	}

	c.logger.DebugContext(ctx, "wallet transaction applied",
		slog.String("action", trx.Action),
		slog.Int("user_id", userID),
		slog.Int("amount", trx.Amount),
	)
	return nil
}
