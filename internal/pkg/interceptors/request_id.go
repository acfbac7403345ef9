// Package interceptors carries request and idempotency ids through contexts,
// HTTP requests and gRPC calls.
package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/jcmexdev/marketplace-sagas/internal/pkg/interceptors/constants"
)

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyRequestID, id)
}

// WithIdempotencyKey stores key in ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyIdempotencyKey, key)
}

// RequestID returns the request id from ctx, falling back to incoming gRPC
// metadata. Empty if neither has one.
func RequestID(ctx context.Context) string {
	return value(ctx, constants.ContextKeyRequestID, constants.HeaderXRequestID)
}

// IdempotencyKey returns the idempotency key from ctx or incoming metadata.
func IdempotencyKey(ctx context.Context) string {
	return value(ctx, constants.ContextKeyIdempotencyKey, constants.HeaderXIdempotencyKey)
}

func value(ctx context.Context, key any, header string) string {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(header); len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// OutgoingContext copies the ids in ctx into outgoing gRPC metadata.
func OutgoingContext(ctx context.Context) context.Context {
	var kv []string
	if id := RequestID(ctx); id != "" {
		kv = append(kv, constants.HeaderXRequestID, id)
	}
	if key := IdempotencyKey(ctx); key != "" {
		kv = append(kv, constants.HeaderXIdempotencyKey, key)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// UnaryServerInterceptor puts the caller's ids into the handler context,
// generating a request id when none was sent, and logs every call.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		requestID := RequestID(ctx)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = WithRequestID(ctx, requestID)
		if key := IdempotencyKey(ctx); key != "" {
			ctx = WithIdempotencyKey(ctx, key)
		}

		start := time.Now()
		resp, err := handler(ctx, req)

		logger.DebugContext(ctx, "grpc call",
			slog.String("method", info.FullMethod),
			slog.String("request_id", requestID),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

// ServerOptions returns the options every gRPC server in the node is built
// with: OTel stats handler plus the request id interceptor.
func ServerOptions(logger *slog.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(logger)),
	}
}
