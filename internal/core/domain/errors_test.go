package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Type: ErrorTypeNotFound, Message: "session s1 not found"}
	if got, want := err.Error(), "not_found: session s1 not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{"invalid request", &APIError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"not found", &APIError{Type: ErrorTypeNotFound}, http.StatusNotFound},
		{"conflict", &APIError{Type: ErrorTypeConflict}, http.StatusConflict},
		{"too large", &APIError{Type: ErrorTypeTooLarge}, http.StatusRequestEntityTooLarge},
		{"server", &APIError{Type: ErrorTypeServer}, http.StatusInternalServerError},
		{"unknown type", &APIError{Type: "bogus"}, http.StatusInternalServerError},
		{"explicit status", &APIError{Type: ErrorTypeServer, StatusCode: http.StatusBadGateway}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantIs   error
	}{
		{"wrapped session not found", fmt.Errorf("append events for s1: %w", ErrSessionNotFound), ErrorTypeNotFound, ErrSessionNotFound},
		{"metadata not found", ErrMetadataNotFound, ErrorTypeNotFound, ErrMetadataNotFound},
		{"invalid metadata", ErrInvalidMetadata, ErrorTypeInvalidRequest, ErrInvalidMetadata},
		{"conflict", fmt.Errorf("add to list: %w", ErrConflict), ErrorTypeConflict, ErrConflict},
		{"batch too large", ErrBatchTooLarge, ErrorTypeTooLarge, ErrBatchTooLarge},
		{"storage failure", errors.New("disk on fire"), ErrorTypeServer, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := ToAPIError(tt.err)
			if apiErr.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", apiErr.Type, tt.wantType)
			}
			if tt.wantIs != nil && !errors.Is(apiErr, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false", apiErr, tt.wantIs)
			}
		})
	}
}

func TestToAPIError_ServerErrorHidesCause(t *testing.T) {
	apiErr := ToAPIError(errors.New("dsn=secret"))
	if apiErr.Message != "internal error" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "internal error")
	}
}

func TestToAPIError_PassesThroughAPIError(t *testing.T) {
	orig := NewAPIError(ErrorTypeInvalidRequest, "bad body")
	if got := ToAPIError(fmt.Errorf("decode: %w", orig)); got != orig {
		t.Errorf("ToAPIError() = %v, want original %v", got, orig)
	}
}

func TestSentinelFor(t *testing.T) {
	tests := []struct {
		errType ErrorType
		message string
		want    error
	}{
		{ErrorTypeNotFound, "get events for s1: session not found", ErrSessionNotFound},
		{ErrorTypeNotFound, "update metadata for s1: metadata not found", ErrMetadataNotFound},
		{ErrorTypeConflict, "anything", ErrConflict},
		{ErrorTypeTooLarge, "anything", ErrBatchTooLarge},
		{ErrorTypeInvalidRequest, "create metadata: invalid metadata", ErrInvalidMetadata},
		{ErrorTypeInvalidRequest, "bad json", nil},
		{ErrorTypeServer, "internal error", nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType)+"/"+tt.message, func(t *testing.T) {
			if got := SentinelFor(tt.errType, tt.message); got != tt.want {
				t.Errorf("SentinelFor() = %v, want %v", got, tt.want)
			}
		})
	}
}
