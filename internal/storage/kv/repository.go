// Package kv implements ports.SessionRepository on top of plain key/value
// buckets. Event logs, metadata records and the recent-sessions index each
// live in their own bucket, so the index key can never collide with a
// session id.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dropcart/session-record-service/internal/core/domain"
	"github.com/dropcart/session-record-service/internal/core/ports"
)

// Bucket names used by the repository.
const (
	EventsBucket   = "events"
	MetadataBucket = "metadata"
	IndexBucket    = "index"
)

const (
	recentSessionsKey = "recent_sessions"
	eventLogSuffix    = ".json"
)

// Repository stores recorded sessions in three buckets.
type Repository struct {
	events   ports.Bucket
	metadata ports.Bucket
	index    ports.Bucket

	listSize int
	now      func() time.Time
	logger   *slog.Logger
}

var _ ports.SessionRepository = (*Repository)(nil)

// Option configures a Repository.
type Option func(*Repository)

// WithListSize caps the recent-sessions index. Non-positive values are ignored.
func WithListSize(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.listSize = n
		}
	}
}

// WithClock overrides the clock used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a repository over the buckets handed out by provider.
func New(provider ports.BucketProvider, opts ...Option) *Repository {
	r := &Repository{
		events:   provider.Bucket(EventsBucket),
		metadata: provider.Bucket(MetadataBucket),
		index:    provider.Bucket(IndexBucket),
		listSize: domain.DefaultRecentListSize,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListSize returns the index cap.
func (r *Repository) ListSize() int {
	return r.listSize
}

func eventLogKey(sessionID string) string {
	return sessionID + eventLogSuffix
}

// SaveEvents implements ports.EventLogStore.
func (r *Repository) SaveEvents(ctx context.Context, sessionID string, events []domain.SessionEvent) (int, error) {
	if events == nil {
		events = []domain.SessionEvent{}
	}

	data, err := json.Marshal(events)
	if err != nil {
		return 0, fmt.Errorf("encode events for %s: %w", sessionID, err)
	}

	if _, err := r.events.Put(ctx, eventLogKey(sessionID), data); err != nil {
		return 0, fmt.Errorf("save events for %s: %w", sessionID, err)
	}

	return len(events), nil
}

// AppendEvents implements ports.EventLogStore. The whole log is read,
// extended and written back; the write is conditional on the version that
// was read.
func (r *Repository) AppendEvents(ctx context.Context, sessionID string, events []domain.SessionEvent) (*domain.AppendResult, error) {
	key := eventLogKey(sessionID)

	obj, err := r.events.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return nil, fmt.Errorf("append events for %s: %w", sessionID, domain.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("append events for %s: %w", sessionID, err)
	}

	existing, err := decodeEvents(obj.Value)
	if err != nil {
		return nil, fmt.Errorf("decode events for %s: %w", sessionID, err)
	}

	merged := make([]domain.SessionEvent, 0, len(existing)+len(events))
	merged = append(merged, existing...)
	merged = append(merged, events...)

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode events for %s: %w", sessionID, err)
	}

	if _, err := r.events.PutIf(ctx, key, data, obj.Version); err != nil {
		return nil, r.writeError("append events", sessionID, err)
	}

	return &domain.AppendResult{
		TotalEventCount: len(merged),
		AllEvents:       merged,
	}, nil
}

// GetEvents implements ports.EventLogStore.
func (r *Repository) GetEvents(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	obj, err := r.events.Get(ctx, eventLogKey(sessionID))
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get events for %s: %w", sessionID, err)
	}

	events, err := decodeEvents(obj.Value)
	if err != nil {
		return nil, fmt.Errorf("decode events for %s: %w", sessionID, err)
	}
	return events, nil
}

// CreateMetadata implements ports.MetadataStore. An existing record is
// replaced without checking.
func (r *Repository) CreateMetadata(ctx context.Context, metadata *domain.SessionMetadata) error {
	if metadata == nil {
		return fmt.Errorf("create metadata: %w", domain.ErrInvalidMetadata)
	}
	if metadata.SessionID == "" {
		return fmt.Errorf("create metadata: session id is required: %w", domain.ErrInvalidMetadata)
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", metadata.SessionID, err)
	}

	if _, err := r.metadata.Put(ctx, metadata.SessionID, data); err != nil {
		return fmt.Errorf("create metadata for %s: %w", metadata.SessionID, err)
	}
	return nil
}

// UpdateMetadata implements ports.MetadataStore. UpdatedAt is always
// stamped from the repository clock, overriding any caller value.
func (r *Repository) UpdateMetadata(ctx context.Context, sessionID string, updates domain.MetadataUpdate) (*domain.SessionMetadata, error) {
	obj, err := r.metadata.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return nil, fmt.Errorf("update metadata for %s: %w", sessionID, domain.ErrMetadataNotFound)
		}
		return nil, fmt.Errorf("update metadata for %s: %w", sessionID, err)
	}

	var metadata domain.SessionMetadata
	if err := json.Unmarshal(obj.Value, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", sessionID, err)
	}

	updates.Apply(&metadata)
	metadata.UpdatedAt = r.now().UTC()

	data, err := json.Marshal(&metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata for %s: %w", sessionID, err)
	}

	if _, err := r.metadata.PutIf(ctx, sessionID, data, obj.Version); err != nil {
		return nil, r.writeError("update metadata", sessionID, err)
	}

	return &metadata, nil
}

// GetMetadata implements ports.MetadataStore.
func (r *Repository) GetMetadata(ctx context.Context, sessionID string) (*domain.SessionMetadata, error) {
	obj, err := r.metadata.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get metadata for %s: %w", sessionID, err)
	}

	var metadata domain.SessionMetadata
	if err := json.Unmarshal(obj.Value, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", sessionID, err)
	}
	return &metadata, nil
}

// AddToList implements ports.RecentSessionIndex.
func (r *Repository) AddToList(ctx context.Context, metadata *domain.SessionMetadata) error {
	if metadata == nil || metadata.SessionID == "" {
		return fmt.Errorf("add to list: %w", domain.ErrInvalidMetadata)
	}

	list, version, err := r.loadIndex(ctx)
	if err != nil {
		return err
	}

	for _, entry := range list {
		if entry.SessionID == metadata.SessionID {
			return nil
		}
	}

	next := make([]*domain.SessionMetadata, 0, len(list)+1)
	next = append(next, metadata.Clone())
	next = append(next, list...)
	if len(next) > r.listSize {
		evicted := len(next) - r.listSize
		next = next[:r.listSize]
		r.logger.Debug("evicted sessions from recent list",
			slog.Int("evicted", evicted),
			slog.Int("list_size", r.listSize))
	}

	return r.storeIndex(ctx, "add to list", metadata.SessionID, next, version)
}

// UpdateInList implements ports.RecentSessionIndex.
func (r *Repository) UpdateInList(ctx context.Context, sessionID string, updates domain.MetadataUpdate) error {
	list, version, err := r.loadIndex(ctx)
	if err != nil {
		return err
	}

	for _, entry := range list {
		if entry.SessionID == sessionID {
			updates.Apply(entry)
			return r.storeIndex(ctx, "update in list", sessionID, list, version)
		}
	}

	return nil
}

// ListMetadata implements ports.RecentSessionIndex.
func (r *Repository) ListMetadata(ctx context.Context, limit, offset int) ([]*domain.SessionMetadata, error) {
	list, _, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	return Page(list, limit, offset), nil
}

// Page returns list[offset:offset+limit] clamped to the bounds of list.
// Negative arguments are treated as zero.
func Page[T any](list []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(list) {
		return []T{}
	}
	end := offset + limit
	if end > len(list) || end < offset {
		end = len(list)
	}
	return list[offset:end]
}

// loadIndex returns the index and the version it was read at. A missing
// index is empty at version 0.
func (r *Repository) loadIndex(ctx context.Context) ([]*domain.SessionMetadata, int64, error) {
	obj, err := r.index.Get(ctx, recentSessionsKey)
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("load recent sessions: %w", err)
	}

	var list []*domain.SessionMetadata
	if err := json.Unmarshal(obj.Value, &list); err != nil {
		return nil, 0, fmt.Errorf("decode recent sessions: %w", err)
	}

	// null entries decode to nil pointers; drop them.
	kept := list[:0]
	for _, entry := range list {
		if entry != nil {
			kept = append(kept, entry)
		}
	}
	return kept, obj.Version, nil
}

func (r *Repository) storeIndex(ctx context.Context, op, sessionID string, list []*domain.SessionMetadata, version int64) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode recent sessions: %w", err)
	}

	if _, err := r.index.PutIf(ctx, recentSessionsKey, data, version); err != nil {
		return r.writeError(op, sessionID, err)
	}
	return nil
}

// writeError maps a lost conditional write onto domain.ErrConflict and
// passes every other storage error through.
func (r *Repository) writeError(op, sessionID string, err error) error {
	if errors.Is(err, ports.ErrVersionConflict) {
		r.logger.Warn("concurrent write detected",
			slog.String("op", op),
			slog.String("session_id", sessionID))
		return fmt.Errorf("%s for %s: %w: %w", op, sessionID, domain.ErrConflict, err)
	}
	return fmt.Errorf("%s for %s: %w", op, sessionID, err)
}

func decodeEvents(data []byte) ([]domain.SessionEvent, error) {
	events := []domain.SessionEvent{}
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.SessionEvent{}
	}
	return events, nil
}
