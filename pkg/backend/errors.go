package backend

import "fmt"

// Error represents a downstream generation failure. It carries the HTTP
// status returned by the downstream (0 when the call never completed).
type Error struct {
	// Target is the downstream route that failed.
	Target string

	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int

	// Message is the error message.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %q error (status %d): %s", e.Target, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %q error: %s", e.Target, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new backend Error.
func NewError(target string, statusCode int, message string, cause error) *Error {
	return &Error{
		Target:     target,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
