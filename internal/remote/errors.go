package remote

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// ErrConflict marks a mutation rejected because the resource changed
// concurrently (HTTP 409 or 412). Such mutations are safe to retry.
var ErrConflict = errors.New("concurrent modification")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string

	// notFound is the domain sentinel a 404 maps to for this call.
	notFound error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel matching the status, so callers can test with
// errors.Is(err, product.ErrNotFound) or errors.Is(err, ErrConflict).
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusConflict, http.StatusPreconditionFailed:
		return ErrConflict
	case http.StatusNotFound:
		return e.notFound
	default:
		return nil
	}
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	switch e.Status {
	case http.StatusConflict, http.StatusPreconditionFailed, http.StatusTooManyRequests:
		return true
	default:
		return e.Status >= 500
	}
}

func newAPIError(status int, message string, notFound error) *APIError {
	return &APIError{Status: status, Message: message, notFound: notFound}
}
