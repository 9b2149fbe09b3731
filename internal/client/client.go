// Package client talks to a running session-record-service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropcart/session-record-service/internal/codec"
	"github.com/dropcart/session-record-service/internal/core/domain"
	"github.com/dropcart/session-record-service/internal/frontdoor/sessions"
	"github.com/dropcart/session-record-service/internal/recording"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 64 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient returns a client for the service at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "session-record-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession opens a session with an optional initial batch of events.
func (c *Client) StartSession(ctx context.Context, req recording.StartRequest) (*domain.SessionMetadata, error) {
	var out domain.SessionMetadata
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordEvents appends a batch to an existing session.
func (c *Client) RecordEvents(ctx context.Context, sessionID string, events []domain.SessionEvent) (*recording.RecordResult, error) {
	if events == nil {
		events = []domain.SessionEvent{}
	}
	var out recording.RecordResult
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/events"
	if err := c.do(ctx, http.MethodPost, path, sessions.RecordRequest{Events: events}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession returns the metadata record for sessionID.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.SessionMetadata, error) {
	var out domain.SessionMetadata
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEvents returns the full event log for sessionID.
func (c *Client) GetEvents(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	var out sessions.EventsResponse
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/events"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Events == nil {
		out.Events = []domain.SessionEvent{}
	}
	return out.Events, nil
}

// ListSessions returns a page of the recent-sessions index, most recent
// first. A zero limit uses the server default.
func (c *Client) ListSessions(ctx context.Context, limit, offset int) ([]*domain.SessionMetadata, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out sessions.ListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Sessions == nil {
		out.Sessions = []*domain.SessionMetadata{}
	}
	return out.Sessions, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return codec.ParseError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
