// Package sessions exposes the recording service over HTTP.
package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dropcart/session-record-service/internal/codec"
	"github.com/dropcart/session-record-service/internal/core/domain"
	"github.com/dropcart/session-record-service/internal/frontdoor"
	"github.com/dropcart/session-record-service/internal/recording"
	"github.com/dropcart/session-record-service/internal/server"
)

const (
	defaultListLimit = 20
	maxListLimit     = domain.DefaultRecentListSize

	// DefaultMaxBodyBytes caps request bodies when no limit is configured.
	DefaultMaxBodyBytes int64 = 10 << 20
)

// RecordRequest is the body of POST /v1/sessions/{id}/events.
type RecordRequest struct {
	Events []domain.SessionEvent `json:"events"`
}

// ListResponse is the body of GET /v1/sessions.
type ListResponse struct {
	Sessions []*domain.SessionMetadata `json:"sessions"`
	Limit    int                       `json:"limit"`
	Offset   int                       `json:"offset"`
}

// EventsResponse is the body of GET /v1/sessions/{id}/events.
type EventsResponse struct {
	SessionID string                `json:"sessionId"`
	Events    []domain.SessionEvent `json:"events"`
}

type Handler struct {
	service      *recording.Service
	maxBodyBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxBodyBytes caps the size of POST bodies. Larger bodies are
// rejected with 413. n <= 0 keeps DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

func NewHandler(service *recording.Service, opts ...Option) *Handler {
	h := &Handler{service: service, maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// decode reads a JSON body of at most h.maxBodyBytes into v.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewAPIError(domain.ErrorTypeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return domain.NewAPIError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// Registrations returns the routes served by h under basePath.
func (h *Handler) Registrations(basePath string) []frontdoor.HandlerRegistration {
	return []frontdoor.HandlerRegistration{
		{Path: basePath + "/v1/sessions", Method: http.MethodPost, Handler: h.HandleStart},
		{Path: basePath + "/v1/sessions", Method: http.MethodGet, Handler: h.HandleList},
		{Path: basePath + "/v1/sessions/{id}", Method: http.MethodGet, Handler: h.HandleGetSession},
		{Path: basePath + "/v1/sessions/{id}/events", Method: http.MethodPost, Handler: h.HandleRecord},
		{Path: basePath + "/v1/sessions/{id}/events", Method: http.MethodGet, Handler: h.HandleGetEvents},
		{Path: basePath + "/healthz", Method: http.MethodGet, Handler: h.HandleHealth},
	}
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req recording.StartRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	metadata, err := h.service.Start(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "session_id", metadata.SessionID)
	codec.WriteJSON(w, http.StatusCreated, metadata)
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	server.AddLogField(r.Context(), "session_id", sessionID)

	var req RecordRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.service.Record(r.Context(), sessionID, req.Events)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	codec.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	offset := 0

	if q := r.URL.Query().Get("limit"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			h.fail(w, r, domain.NewAPIError(domain.ErrorTypeInvalidRequest, "limit must be a non-negative integer"))
			return
		}
		limit = min(v, maxListLimit)
	}

	if q := r.URL.Query().Get("offset"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			h.fail(w, r, domain.NewAPIError(domain.ErrorTypeInvalidRequest, "offset must be a non-negative integer"))
			return
		}
		offset = v
	}

	sessions, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	codec.WriteJSON(w, http.StatusOK, ListResponse{Sessions: sessions, Limit: limit, Offset: offset})
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	server.AddLogField(r.Context(), "session_id", sessionID)

	metadata, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	codec.WriteJSON(w, http.StatusOK, metadata)
}

func (h *Handler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	server.AddLogField(r.Context(), "session_id", sessionID)

	events, err := h.service.Events(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	codec.WriteJSON(w, http.StatusOK, EventsResponse{SessionID: sessionID, Events: events})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	codec.WriteError(w, err)
}
