// Package sagalog records every state transition of the placement and
// cancellation sagas.
//
// The log is an audit trail. Rows can be correlated with a distributed trace
// through trace_id, but nothing is replayed from them: saga state lives in
// worker memory only.
package sagalog

import "time"

// Status represents the lifecycle state of a saga execution.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// Kind tells placement and cancellation sagas apart for the same order id.
type Kind string

const (
	KindPlacement    Kind = "placement"
	KindCancellation Kind = "cancellation"
)

// SagaLog is a single row in the saga_logs table.
type SagaLog struct {
	// SagaID is "<kind>:<order_id>" so both sagas of one order can be found
	// with a prefix query.
	SagaID string

	Status Status

	// CurrentStep is the name of the step that was just executed or failed.
	CurrentStep string

	// Payload is the JSON request that started the saga. Written on STARTED only.
	Payload string

	// ErrorMessages is a JSON array of failure details.
	ErrorMessages string

	// TraceID and SpanID come from the span active when the entry was built.
	TraceID string
	SpanID  string

	UpdatedAt time.Time
}
