package telemetry

import "fmt"

// BackendError represents an error from a primary telemetry backend.
type BackendError struct {
	Backend   string // Backend type ("sqlite", "postgres", "memory")
	Operation string // Operation that failed ("ping", "insert", "aggregate", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("telemetry backend error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// NewBackendError creates a new BackendError.
func NewBackendError(backend, operation string, cause error) *BackendError {
	return &BackendError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// WriteError represents a failure to persist a telemetry event. It is
// internal to the telemetry layer and is never surfaced to request callers.
type WriteError struct {
	EventID string // Event that failed to persist
	Path    string // Write path ("primary", "fallback")
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("telemetry write error [event_id=%s, path=%s]: %v", e.EventID, e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *WriteError) Unwrap() error {
	return e.Cause
}

// NewWriteError creates a new WriteError.
func NewWriteError(eventID, path string, cause error) *WriteError {
	return &WriteError{
		EventID: eventID,
		Path:    path,
		Cause:   cause,
	}
}
