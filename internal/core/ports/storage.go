package ports

import (
	"context"
	"errors"
	"time"

	"github.com/dropcart/session-record-service/internal/core/domain"
)

// EventLogStore keeps one append-only event log per session.
type EventLogStore interface {
	// SaveEvents creates or replaces the full log for sessionID and returns
	// the resulting event count.
	SaveEvents(ctx context.Context, sessionID string, events []domain.SessionEvent) (int, error)

	// AppendEvents concatenates events after the existing log. It fails with
	// domain.ErrSessionNotFound if the session has no log yet.
	AppendEvents(ctx context.Context, sessionID string, events []domain.SessionEvent) (*domain.AppendResult, error)

	// GetEvents returns the full log, or nil if the session has no log.
	// An existing empty log is returned as a non-nil empty slice.
	GetEvents(ctx context.Context, sessionID string) ([]domain.SessionEvent, error)
}

// MetadataStore keeps one summary record per session.
type MetadataStore interface {
	// CreateMetadata persists metadata, silently replacing any existing record.
	CreateMetadata(ctx context.Context, metadata *domain.SessionMetadata) error

	// UpdateMetadata merges updates over the existing record and stamps
	// UpdatedAt. It fails with domain.ErrMetadataNotFound if there is no record.
	UpdateMetadata(ctx context.Context, sessionID string, updates domain.MetadataUpdate) (*domain.SessionMetadata, error)

	// GetMetadata returns the record, or nil if there is none.
	GetMetadata(ctx context.Context, sessionID string) (*domain.SessionMetadata, error)
}

// RecentSessionIndex is a bounded most-recent-first list of metadata
// snapshots. It is a derived cache and is not reconciled with MetadataStore.
type RecentSessionIndex interface {
	// AddToList prepends metadata unless an entry with the same session id is
	// already present, evicting the oldest entry when the list is full.
	AddToList(ctx context.Context, metadata *domain.SessionMetadata) error

	// UpdateInList merges updates over the matching entry in place. Missing
	// entries are ignored.
	UpdateInList(ctx context.Context, sessionID string, updates domain.MetadataUpdate) error

	// ListMetadata returns list[offset : offset+limit], clamped to bounds.
	ListMetadata(ctx context.Context, limit, offset int) ([]*domain.SessionMetadata, error)
}

// SessionRepository is the single mutation path for recorded sessions.
type SessionRepository interface {
	EventLogStore
	MetadataStore
	RecentSessionIndex
}

var (
	// ErrObjectNotFound is returned by Bucket.Get for a missing key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrVersionConflict is returned by Bucket.PutIf when the stored version
	// does not match the expected one.
	ErrVersionConflict = errors.New("version conflict")
)

// Object is a stored value with its write version.
type Object struct {
	Key       string
	Value     []byte
	Version   int64
	UpdatedAt time.Time
}

// Bucket is a single key/value blob namespace.
type Bucket interface {
	// Get returns the object stored under key or ErrObjectNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Put stores value under key unconditionally.
	Put(ctx context.Context, key string, value []byte) (*Object, error)

	// PutIf stores value only if the current version equals version.
	// Version 0 means the key must not exist yet.
	PutIf(ctx context.Context, key string, value []byte, version int64) (*Object, error)
}

// BucketProvider hands out named buckets backed by the same storage.
type BucketProvider interface {
	Bucket(name string) Bucket
	Close() error
}
