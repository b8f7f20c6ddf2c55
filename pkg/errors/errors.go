// Package errors defines the sentinel errors shared by the catalog services
// and maps them onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

// AppError carries a sentinel, a client-facing message and the status code
// the HTTP layer should answer with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Details    map[string]string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// WithDetails attaches per-field detail messages, typically validation
// failures keyed by parameter name.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Invalid is shorthand for a 400 wrapping ErrInvalidInput.
func Invalid(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrCatalogUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope every endpoint answers with.
type Body struct {
	Error     string            `json:"error"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// Response maps err onto a status code and a client-safe body. Only
// AppError messages and sentinel texts reach the client; anything else is
// reported as an internal error.
func Response(err error, requestID string) (int, Body) {
	status := HTTPStatusCode(err)
	body := Body{Error: ErrInternal.Error(), RequestID: requestID}
	var appErr *AppError
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
		body.Details = appErr.Details
		return status, body
	}
	for _, sentinel := range []error{ErrProductNotFound, ErrInvalidInput, ErrRateLimited, ErrUnauthorized, ErrCatalogUnavailable, ErrTimeout} {
		if errors.Is(err, sentinel) {
			body.Error = sentinel.Error()
			break
		}
	}
	return status, body
}

// Write sends err as a JSON error response and returns the status used.
func Write(w http.ResponseWriter, err error, requestID string) int {
	status, body := Response(err, requestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
	return status
}
