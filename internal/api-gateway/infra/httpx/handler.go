package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/marketplace-sagas/internal/api-gateway/core/domain/entity"
	"github.com/jcmexdev/marketplace-sagas/internal/api-gateway/core/ports"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/cache"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/interceptors"
)

// HeaderIdempotentReplay marks a POST /orders response served from the
// idempotency cache.
const HeaderIdempotentReplay = "Idempotent-Replay"

// Handler translates HTTP requests into marketplace calls.
type Handler struct {
	marketplace    ports.Marketplace
	cache          cache.Cache // nil disables idempotent replay
	idempotencyTTL time.Duration
	logger         *slog.Logger
}

func NewHandler(m ports.Marketplace, c cache.Cache, idempotencyTTL time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		marketplace:    m,
		cache:          c,
		idempotencyTTL: idempotencyTTL,
		logger:         logger.With(slog.String("component", "http")),
	}
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.marketplace.GetProduct(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateOrder handles POST /orders. With an X-Idempotency-Key header a
// successful order is stored and replayed for repeated requests.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cacheKey string
	if key := interceptors.IdempotencyKey(ctx); key != "" && h.cache != nil {
		cacheKey = h.cache.GenerateKey("create_order", key)
		cached, err := h.cache.Get(ctx, cacheKey)
		if err != nil {
			h.logger.WarnContext(ctx, "idempotency lookup failed", slog.String("error", err.Error()))
		} else if cached != "" {
			w.Header().Set(HeaderIdempotentReplay, "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(cached))
			return
		}
	}

	var req CreateOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.marketplace.CreateOrder(ctx, req.toOrder())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	body, err := json.Marshal(order)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if cacheKey != "" {
		if err := h.cache.Set(ctx, cacheKey, body, h.idempotencyTTL); err != nil {
			h.logger.WarnContext(ctx, "idempotency store failed", slog.String("error", err.Error()))
		}
	}

	h.logger.InfoContext(ctx, "order created",
		slog.String("request_id", interceptors.RequestID(ctx)),
		slog.Int("order_id", order.OrderID),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.marketplace.GetOrder(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// UpdateOrder handles PUT /orders/{id}.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	updated, err := h.marketplace.UpdateOrder(r.Context(), id, req.toOrder())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if !updated {
		writeError(w, http.StatusBadRequest, "update_refused", "order is not PLACED or status is not DELIVERED")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CancelOrder handles DELETE /orders/{id}.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cancelled, err := h.marketplace.CancelOrder(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if !cancelled {
		writeError(w, http.StatusBadRequest, "cancel_refused", "order is not PLACED")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, entity.ErrRejected):
		writeError(w, http.StatusBadRequest, "order_rejected", err.Error())
	case errors.Is(err, entity.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, entity.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, entity.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "unexpected failure", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
