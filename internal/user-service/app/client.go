// Package userservice talks to the external identity/discount service.
package userservice

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

var (
	// ErrUserNotFound is returned for any non-200 lookup answer.
	ErrUserNotFound = errors.New("users service: user not found")
	// ErrUnexpectedStatus is returned when a discount update is not accepted.
	ErrUnexpectedStatus = errors.New("users service: unexpected status")
)

// User is the identity record the placement saga needs.
type User struct {
	ID              int  `json:"id"`
	DiscountAvailed bool `json:"discount_availed"`
}

// Client reads users and flags their one-time discount.
type Client struct {
	baseURL string
	http    httpclient.Doer
	timeout time.Duration
	logger  *slog.Logger
}

func NewClient(baseURL string, doer httpclient.Doer, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "users-client")),
	}
}

func (c *Client) userURL(id int) string {
	return c.baseURL + "/users/" + strconv.Itoa(id)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// GetUser fetches a user. Any answer other than 200 means the user does not
// exist; transport failures are returned as errors.
func (c *Client) GetUser(ctx context.Context, id int) (*User, error) {
	ctx, span := otel.Tracer("marketplace/users").Start(ctx, "users.get")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", id))

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL(id), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("users service: build request: %w", err)
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, fmt.Errorf("users service: get user %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d (status %d)", ErrUserNotFound, id, resp.StatusCode)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("users service: decode user %d: %w", id, err)
	}
	return &u, nil
}

// SetDiscountAvailed records whether the user has used the one-time
// discount. The service answers 202 on success.
func (c *Client) SetDiscountAvailed(ctx context.Context, id int, availed bool) error {
	ctx, span := otel.Tracer("marketplace/users").Start(ctx, "users.set_discount_availed")
	defer span.End()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(User{ID: id, DiscountAvailed: availed})
	if err != nil {
		return fmt.Errorf("users service: marshal user: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.userURL(id), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("users service: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("users service: set discount for %d: %w", id, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		span.SetStatus(codes.Error, resp.Status)
		return fmt.Errorf("%w: set discount for %d got %d", ErrUnexpectedStatus, id, resp.StatusCode)
	}
	return nil
}
