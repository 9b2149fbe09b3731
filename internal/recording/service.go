// Package recording drives the session repository the way the recording
// endpoint uses it: start a session, append batches as they arrive and
// keep the metadata record and the recent-sessions index in step.
package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dropcart/session-record-service/internal/core/domain"
	"github.com/dropcart/session-record-service/internal/core/ports"
)

// StartRequest opens a new recording session.
type StartRequest struct {
	// SessionID is optional; a UUID is generated when empty.
	SessionID string `json:"sessionId,omitempty"`
	URL       string `json:"url"`
	// Timestamp is the session start in ms since epoch. Defaults to now.
	Timestamp int64                 `json:"timestamp,omitempty"`
	Events    []domain.SessionEvent `json:"events,omitempty"`
}

// RecordResult is returned after a batch has been appended.
type RecordResult struct {
	SessionID       string `json:"sessionId"`
	TotalEventCount int    `json:"totalEventCount"`
	Duration        int64  `json:"duration"`
}

// Service coordinates the three stores behind a SessionRepository.
type Service struct {
	repo   ports.SessionRepository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	maxBatchEvents atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for CreatedAt and default timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithMaxBatchEvents limits the number of events accepted per call.
// Zero means unlimited.
func WithMaxBatchEvents(n int) Option {
	return func(s *Service) {
		s.SetMaxBatchEvents(n)
	}
}

// NewService creates a Service over repo.
func NewService(repo ports.SessionRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMaxBatchEvents changes the per-call event limit. It is safe to call
// while requests are in flight.
func (s *Service) SetMaxBatchEvents(n int) {
	if n < 0 {
		n = 0
	}
	s.maxBatchEvents.Store(int64(n))
}

// MaxBatchEvents returns the current per-call event limit.
func (s *Service) MaxBatchEvents() int {
	return int(s.maxBatchEvents.Load())
}

func (s *Service) checkBatch(events []domain.SessionEvent) error {
	if limit := s.maxBatchEvents.Load(); limit > 0 && int64(len(events)) > limit {
		return fmt.Errorf("%d events exceeds limit of %d: %w", len(events), limit, domain.ErrBatchTooLarge)
	}
	return nil
}

// Start creates the metadata record, writes the initial event log and adds
// the session to the recent-sessions index.
func (s *Service) Start(ctx context.Context, req StartRequest) (*domain.SessionMetadata, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("start session: url is required: %w", domain.ErrInvalidMetadata)
	}
	if err := s.checkBatch(req.Events); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	now := s.now().UTC()
	id := req.SessionID
	if id == "" {
		id = s.newID()
	}
	start := req.Timestamp
	if start == 0 {
		start = now.UnixMilli()
	}

	metadata := &domain.SessionMetadata{
		SessionID:  id,
		Timestamp:  start,
		Duration:   durationOf(start, req.Events, 0),
		EventCount: len(req.Events),
		URL:        req.URL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.CreateMetadata(ctx, metadata); err != nil {
		return nil, err
	}
	if _, err := s.repo.SaveEvents(ctx, id, req.Events); err != nil {
		return nil, err
	}
	if err := s.repo.AddToList(ctx, metadata); err != nil {
		return nil, err
	}

	s.logger.Info("session started",
		slog.String("session_id", id),
		slog.String("url", req.URL),
		slog.Int("events", len(req.Events)))

	return metadata, nil
}

// Record appends a batch and refreshes the derived duration and event count
// in both the metadata record and the index entry.
func (s *Service) Record(ctx context.Context, sessionID string, events []domain.SessionEvent) (*RecordResult, error) {
	if err := s.checkBatch(events); err != nil {
		return nil, fmt.Errorf("record events for %s: %w", sessionID, err)
	}

	current, err := s.repo.GetMetadata(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("record events for %s: %w", sessionID, domain.ErrMetadataNotFound)
	}

	appended, err := s.repo.AppendEvents(ctx, sessionID, events)
	if err != nil {
		return nil, err
	}

	count := appended.TotalEventCount
	duration := durationOf(current.Timestamp, appended.AllEvents, current.Duration)

	updated, err := s.repo.UpdateMetadata(ctx, sessionID, domain.MetadataUpdate{
		EventCount: &count,
		Duration:   &duration,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateInList(ctx, sessionID, domain.MetadataUpdate{
		EventCount: &count,
		Duration:   &duration,
		UpdatedAt:  &updated.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	s.logger.Debug("events recorded",
		slog.String("session_id", sessionID),
		slog.Int("batch", len(events)),
		slog.Int("total", count))

	return &RecordResult{
		SessionID:       sessionID,
		TotalEventCount: count,
		Duration:        duration,
	}, nil
}

// Session returns the metadata record for sessionID.
func (s *Service) Session(ctx context.Context, sessionID string) (*domain.SessionMetadata, error) {
	metadata, err := s.repo.GetMetadata(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if metadata == nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, domain.ErrMetadataNotFound)
	}
	return metadata, nil
}

// Events returns the full event log for sessionID.
func (s *Service) Events(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	events, err := s.repo.GetEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		return nil, fmt.Errorf("get events for %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	return events, nil
}

// List returns a page of the recent-sessions index.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.SessionMetadata, error) {
	return s.repo.ListMetadata(ctx, limit, offset)
}

// durationOf is the span from start to the last event, never negative and
// never shorter than previous.
func durationOf(start int64, events []domain.SessionEvent, previous int64) int64 {
	if len(events) == 0 {
		return previous
	}
	d := events[len(events)-1].Timestamp - start
	if d < previous {
		d = previous
	}
	if d < 0 {
		d = 0
	}
	return d
}
