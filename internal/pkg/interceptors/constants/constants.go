package constants

// contextKey keeps these keys apart from string keys set by other packages.
type contextKey string

const (
	HeaderXRequestID      = "x-request-id"
	HeaderXIdempotencyKey = "x-idempotency-key"

	ContextKeyRequestID      contextKey = HeaderXRequestID
	ContextKeyIdempotencyKey contextKey = HeaderXIdempotencyKey
)
