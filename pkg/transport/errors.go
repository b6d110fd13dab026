package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError represents a non-200 HTTP response.
type StatusError struct {
	Code int // HTTP status code
}

// Error returns the error message.
func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Is reports whether target is a *StatusError with the same code.
//
// This allows errors.Is() to match on a specific status code.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Temporary returns true for server-side (5xx) failures.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}

// Predefined errors for common cases.
var (
	// ErrUnavailable is returned when no request object can be created.
	ErrUnavailable = errors.New("transport: request capability unavailable")

	// ErrAborted is reported in Response.Err when Abort cancelled the request.
	ErrAborted = errors.New("transport: request aborted")

	// ErrAlreadySent is reported when Send is called twice on one request.
	ErrAlreadySent = errors.New("transport: request already sent")
)
