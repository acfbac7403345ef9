package sagalog

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo carries hex trace and span ids. Both are empty outside a span.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
}

// NewEntry stamps a log row with the saga's current span so the audit trail
// can be joined against traces.
func NewEntry(ctx context.Context, sagaID string, status Status, step, payload string, errs []string) *SagaLog {
	info := ExtractTraceInfo(ctx)
	return &SagaLog{
		SagaID:        sagaID,
		Status:        status,
		CurrentStep:   step,
		Payload:       payload,
		ErrorMessages: encodeErrors(errs),
		TraceID:       info.TraceID,
		SpanID:        info.SpanID,
		UpdatedAt:     time.Now().UTC(),
	}
}

// encodeErrors always yields a JSON array so readers never special-case NULL.
func encodeErrors(errs []string) string {
	if len(errs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "[]"
	}
	return string(b)
}
