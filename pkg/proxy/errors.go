package proxy

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies proxy failures. Every error returned by Handle is a
// *proxy.Error carrying exactly one kind.
type ErrorKind string

const (
	// ErrInvalidInput means the request was rejected before any capacity
	// was taken: empty prompt, oversized prompt, malformed payload.
	ErrInvalidInput ErrorKind = "invalid_input"

	// ErrTimeout means the caller's own deadline expired, either while
	// queued for capacity or mid-flight.
	ErrTimeout ErrorKind = "timeout"

	// ErrServiceUnavailable means every attempt failed against an
	// unreachable or overloaded downstream.
	ErrServiceUnavailable ErrorKind = "service_unavailable"

	// ErrInternal covers everything else: unexpected downstream replies,
	// malformed responses, bugs.
	ErrInternal ErrorKind = "internal_error"
)

// Error is the failure type surfaced to proxy callers.
type Error struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// Message is a caller-safe description.
	Message string

	// RequestID correlates the failure with its telemetry events.
	RequestID string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy error [%s]: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy error [%s]: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error kind to a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new proxy Error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}
