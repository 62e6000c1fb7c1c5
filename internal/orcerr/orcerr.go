// Package orcerr defines the error taxonomy for the orchestration core.
// Handlers map kinds to HTTP status codes; components classify failures
// once at the boundary where they occur.
package orcerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an orchestration error.
type Kind int

const (
	// KindNotFound - missing task, agent, or session.
	KindNotFound Kind = iota
	// KindForbidden - actor not permitted (non-master approving review → done).
	KindForbidden
	// KindInvalidRequest - missing required fields, already-started planning,
	// unanswered questions at approval time.
	KindInvalidRequest
	// KindConflict - duplicate active session.
	KindConflict
	// KindUpstreamUnavailable - OpenClaw gateway or limits service
	// unreachable or timed out. Retryable by the caller.
	KindUpstreamUnavailable
	// KindUpstreamProtocol - malformed or unparseable upstream response.
	KindUpstreamProtocol
)

// Error is a classified orchestration error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or ok=false if err carries no classification.
func KindOf(err error) (Kind, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind, true
	}
	return 0, false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// HTTPStatus maps an error to the HTTP status code handlers should return.
// Unclassified errors map to 500.
func HTTPStatus(err error) int {
	k, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
