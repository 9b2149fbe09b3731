package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a session has no event log.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMetadataNotFound is returned when a session has no metadata record.
	ErrMetadataNotFound = errors.New("metadata not found")

	// ErrInvalidMetadata is returned when metadata is missing or has no session id.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrConflict is returned when a conditional write lost a race with
	// another writer. The caller may re-read and retry.
	ErrConflict = errors.New("concurrent modification")

	// ErrBatchTooLarge is returned when an event batch exceeds the configured limit.
	ErrBatchTooLarge = errors.New("event batch too large")
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeTooLarge       ErrorType = "too_large"
	ErrorTypeServer         ErrorType = "server"
)

// APIError is the error shape returned over HTTP.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`

	// StatusCode overrides the status derived from Type.
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the sentinel the error was built from, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{Type: errType, Message: message}
}

// WithCause records the sentinel behind the error so errors.Is keeps working
// on both sides of the wire.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ToAPIError maps a store or service error onto an APIError.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, ErrSessionNotFound):
		return NewAPIError(ErrorTypeNotFound, err.Error()).WithCause(ErrSessionNotFound)
	case errors.Is(err, ErrMetadataNotFound):
		return NewAPIError(ErrorTypeNotFound, err.Error()).WithCause(ErrMetadataNotFound)
	case errors.Is(err, ErrInvalidMetadata):
		return NewAPIError(ErrorTypeInvalidRequest, err.Error()).WithCause(ErrInvalidMetadata)
	case errors.Is(err, ErrConflict):
		return NewAPIError(ErrorTypeConflict, err.Error()).WithCause(ErrConflict)
	case errors.Is(err, ErrBatchTooLarge):
		return NewAPIError(ErrorTypeTooLarge, err.Error()).WithCause(ErrBatchTooLarge)
	default:
		return NewAPIError(ErrorTypeServer, "internal error").WithCause(err)
	}
}

// SentinelFor returns the sentinel matching a decoded error type and message,
// so client code can use errors.Is after a round trip.
func SentinelFor(errType ErrorType, message string) error {
	switch errType {
	case ErrorTypeNotFound:
		if strings.Contains(message, ErrMetadataNotFound.Error()) {
			return ErrMetadataNotFound
		}
		return ErrSessionNotFound
	case ErrorTypeConflict:
		return ErrConflict
	case ErrorTypeTooLarge:
		return ErrBatchTooLarge
	case ErrorTypeInvalidRequest:
		if strings.Contains(message, ErrInvalidMetadata.Error()) {
			return ErrInvalidMetadata
		}
	}
	return nil
}
