package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/dropcart/session-record-service/internal/adapters/config/file"
	"github.com/dropcart/session-record-service/internal/config"
	"github.com/dropcart/session-record-service/internal/core/ports"
	"github.com/dropcart/session-record-service/internal/storage/memory"
	"github.com/dropcart/session-record-service/internal/storage/sqldb"
)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithFileConfig uses file-based configuration with hot-reload.
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(s *Service) error {
		provider, err := file.NewProvider(path, s.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		s.config = provider
		return nil
	}
}

// WithConfig uses a fixed configuration. Nothing is watched.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		s.config = staticConfig{cfg: cfg}
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(s *Service) error {
		s.config = provider
		return nil
	}
}

// WithSQLite stores sessions in the SQLite database at path, ignoring the
// storage section of the config.
func WithSQLite(path string) Option {
	return func(s *Service) error {
		store, err := sqldb.NewSQLite(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		s.storage = store
		return nil
	}
}

// WithMemoryStorage keeps sessions in process memory.
func WithMemoryStorage() Option {
	return func(s *Service) error {
		s.storage = memory.New()
		return nil
	}
}

// WithBucketProvider sets a custom storage backend.
func WithBucketProvider(provider ports.BucketProvider) Option {
	return func(s *Service) error {
		s.storage = provider
		return nil
	}
}

// WithLogger sets a custom logger. Apply it before WithFileConfig so the
// config provider logs through it too.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithTracing wraps the repository in spans from tracer. When the config
// enables telemetry and no tracer is given, the global provider is used.
func WithTracing(tracer trace.Tracer) Option {
	return func(s *Service) error {
		s.tracer = tracer
		return nil
	}
}

type staticConfig struct {
	cfg *config.Config
}

func (c staticConfig) Load(context.Context) (*config.Config, error) {
	copied := *c.cfg
	return &copied, nil
}

func (staticConfig) Watch(context.Context, func(*config.Config)) error { return nil }

func (staticConfig) Close() error { return nil }
