// Package domain holds the session recording types shared by every layer.
package domain

import (
	"encoding/json"
	"time"
)

// DefaultRecentListSize is the maximum number of entries kept in the
// recent-sessions index.
const DefaultRecentListSize = 1000

// SessionEvent is one recorded DOM mutation or interaction.
type SessionEvent struct {
	Type      int             `json:"type"`
	Timestamp int64           `json:"timestamp"` // ms since epoch
	Data      json.RawMessage `json:"data"`      // opaque to the store
}

// SessionMetadata summarizes a recorded session. SessionID is the primary key
// across the event log, the metadata store and the recent-sessions index.
type SessionMetadata struct {
	SessionID  string    `json:"sessionId"`
	Timestamp  int64     `json:"timestamp"` // session start, ms since epoch
	Duration   int64     `json:"duration"`  // ms
	EventCount int       `json:"eventCount"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Clone returns a copy of m.
func (m *SessionMetadata) Clone() *SessionMetadata {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// MetadataUpdate is a partial update of SessionMetadata. Nil fields are left
// untouched. SessionID and CreatedAt cannot be changed after creation.
type MetadataUpdate struct {
	Timestamp  *int64     `json:"timestamp,omitempty"`
	Duration   *int64     `json:"duration,omitempty"`
	EventCount *int       `json:"eventCount,omitempty"`
	URL        *string    `json:"url,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// Apply shallow-merges u over m.
func (u MetadataUpdate) Apply(m *SessionMetadata) {
	if u.Timestamp != nil {
		m.Timestamp = *u.Timestamp
	}
	if u.Duration != nil {
		m.Duration = *u.Duration
	}
	if u.EventCount != nil {
		m.EventCount = *u.EventCount
	}
	if u.URL != nil {
		m.URL = *u.URL
	}
	if u.UpdatedAt != nil {
		m.UpdatedAt = *u.UpdatedAt
	}
}

// IsEmpty reports whether u carries no fields.
func (u MetadataUpdate) IsEmpty() bool {
	return u.Timestamp == nil && u.Duration == nil && u.EventCount == nil &&
		u.URL == nil && u.UpdatedAt == nil
}

// AppendResult is returned by an append to an event log.
type AppendResult struct {
	TotalEventCount int            `json:"totalEventCount"`
	AllEvents       []SessionEvent `json:"allEvents"`
}
