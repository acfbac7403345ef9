package entity

import "errors"

var (
	// ErrNotFound means the product or order does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRejected means a saga ran and refused the request.
	ErrRejected = errors.New("rejected")
	// ErrInvalidRequest means the request failed validation before any entity was contacted.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTimeout means no reply arrived in time. The work may still complete.
	ErrTimeout = errors.New("timed out")
	// ErrUnavailable means the target could not accept the message, e.g. during shutdown.
	ErrUnavailable = errors.New("unavailable")
)
