// Package sessionrecord provides the public API for embedding the session
// recording service and talking to a running instance.
package sessionrecord

import (
	"github.com/dropcart/session-record-service/internal/client"
	"github.com/dropcart/session-record-service/internal/core/domain"
	"github.com/dropcart/session-record-service/internal/recording"
	"github.com/dropcart/session-record-service/internal/runtime"
)

// Service is the embeddable session recording process.
// See internal/runtime.Service for full documentation.
type Service = runtime.Service

// Option is a functional option for configuring a Service.
type Option = runtime.Option

// New creates a new Service with the given options.
// Example:
//
//	svc, err := sessionrecord.New(
//	    sessionrecord.WithFileConfig("config.yaml"),
//	    sessionrecord.WithSQLite("./data/sessions.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfig         = runtime.WithConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Storage
	WithSQLite         = runtime.WithSQLite
	WithMemoryStorage  = runtime.WithMemoryStorage
	WithBucketProvider = runtime.WithBucketProvider

	// Observability
	WithLogger  = runtime.WithLogger
	WithTracing = runtime.WithTracing
)

// Wire types shared by the service and its clients.
type (
	SessionEvent    = domain.SessionEvent
	SessionMetadata = domain.SessionMetadata
	StartRequest    = recording.StartRequest
	RecordResult    = recording.RecordResult
	APIError        = domain.APIError
)

// Errors returned by the service and decoded by Client.
var (
	ErrSessionNotFound  = domain.ErrSessionNotFound
	ErrMetadataNotFound = domain.ErrMetadataNotFound
	ErrInvalidMetadata  = domain.ErrInvalidMetadata
	ErrConflict         = domain.ErrConflict
	ErrBatchTooLarge    = domain.ErrBatchTooLarge
)

// Client talks to a running service over HTTP.
type Client = client.Client

// ClientOption configures a Client.
type ClientOption = client.Option

var (
	NewClient      = client.NewClient
	WithHTTPClient = client.WithHTTPClient
	WithUserAgent  = client.WithUserAgent
)
