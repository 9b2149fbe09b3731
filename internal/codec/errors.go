// Package codec converts between domain errors and their JSON wire form.
package codec

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dropcart/session-record-service/internal/core/domain"
)

// ErrorResponse is a rendered error ready to be written.
type ErrorResponse struct {
	StatusCode int
	Body       []byte
}

// errorEnvelope is the JSON body for every error response.
type errorEnvelope struct {
	Error *domain.APIError `json:"error"`
}

// FormatError renders err as {"error":{"type","message"}} with the status
// derived from its type.
func FormatError(err error) *ErrorResponse {
	apiErr := domain.ToAPIError(err)

	body, _ := json.Marshal(errorEnvelope{Error: apiErr})

	return &ErrorResponse{
		StatusCode: apiErr.HTTPStatusCode(),
		Body:       body,
	}
}

// WriteError writes err as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	resp := FormatError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ParseError decodes an error response body. The returned error keeps the
// matching domain sentinel so errors.Is works on the client side. Bodies
// that are not in the envelope format become server errors carrying the
// status code.
func ParseError(statusCode int, body []byte) *domain.APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil || env.Error.Type == "" {
		apiErr := domain.NewAPIError(typeForStatus(statusCode), fmt.Sprintf("unexpected status %d", statusCode))
		apiErr.StatusCode = statusCode
		return apiErr
	}

	apiErr := env.Error
	apiErr.StatusCode = statusCode
	if sentinel := domain.SentinelFor(apiErr.Type, apiErr.Message); sentinel != nil {
		apiErr.WithCause(sentinel)
	}
	return apiErr
}

func typeForStatus(status int) domain.ErrorType {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeInvalidRequest
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusRequestEntityTooLarge:
		return domain.ErrorTypeTooLarge
	default:
		return domain.ErrorTypeServer
	}
}
