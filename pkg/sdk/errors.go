package dokindex

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors mapped from API status codes.
// Use errors.Is() to check.
var (
	ErrNotFound          = errors.New("dokindex: not found")
	ErrConflict          = errors.New("dokindex: conflict")
	ErrUnauthorized      = errors.New("dokindex: unauthorized")
	ErrUnsupportedFormat = errors.New("dokindex: unsupported format")
	ErrRateLimited       = errors.New("dokindex: rate limited")
	ErrUnavailable       = errors.New("dokindex: service unavailable")
)

// APIError carries the error body returned by the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dokindex: %s (http %d, code %s)", e.Message, e.Status, e.Code)
}

// Unwrap maps the HTTP status onto a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusUnsupportedMediaType:
		return ErrUnsupportedFormat
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return ErrUnavailable
	default:
		return nil
	}
}
