// Package apperror defines the error kinds shared by the click pipeline
// and the analytics engine.
//
// Errors are wrapped with fmt.Errorf so that errors.Is matches both the
// kind and the underlying cause:
//
//	fmt.Errorf("%w: xadd: %w", apperror.ErrTransport, err)
package apperror

import (
	"errors"
	"net/http"
)

// Error kinds.
var (
	// ErrTransport means the event log or the relational store was unreachable.
	ErrTransport = errors.New("transport error")

	// ErrDecode means a stream message payload could not be decoded.
	ErrDecode = errors.New("decode error")

	// ErrPersistence means a store write failed after all retries.
	ErrPersistence = errors.New("persistence error")

	// ErrValidation means an analytics filter was malformed or out of range.
	ErrValidation = errors.New("validation error")

	// ErrNotFound means no rows matched.
	ErrNotFound = errors.New("not found")
)

// HTTPStatus maps an error to the status code the HTTP layer should return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns a short label for the error kind, used in logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}
