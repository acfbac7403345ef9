package userservice

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/marketplace-sagas/internal/pkg/httpclient"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	doer := httpclient.New(httpclient.Config{Timeout: time.Second, MaxConnsPerHost: 4})
	return NewClient(server.URL, doer, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/1":
			_, _ = w.Write([]byte(`{"id":1,"name":"ignored","discount_availed":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	u, err := c.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &User{ID: 1, DiscountAvailed: true}, u)

	_, err = c.GetUser(context.Background(), 2)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUser_BadPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := c.GetUser(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestSetDiscountAvailed(t *testing.T) {
	var got User
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users/5", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, c.SetDiscountAvailed(context.Background(), 5, true))
	assert.Equal(t, User{ID: 5, DiscountAvailed: true}, got)
}

func TestSetDiscountAvailed_RequiresAccepted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	err := c.SetDiscountAvailed(context.Background(), 5, true)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
