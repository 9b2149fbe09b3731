// Package runtime wires configuration, storage, the recording service and
// the HTTP server into one process-level Service.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dropcart/session-record-service/internal/config"
	"github.com/dropcart/session-record-service/internal/core/ports"
	"github.com/dropcart/session-record-service/internal/frontdoor"
	"github.com/dropcart/session-record-service/internal/frontdoor/sessions"
	"github.com/dropcart/session-record-service/internal/recording"
	"github.com/dropcart/session-record-service/internal/server"
	"github.com/dropcart/session-record-service/internal/storage"
	"github.com/dropcart/session-record-service/internal/storage/kv"
	"github.com/dropcart/session-record-service/internal/telemetry"
)

// Service is the session recording process. It can be embedded in a larger
// application or run standalone from cmd/session-record-service.
type Service struct {
	// Dependencies (injected via options)
	config  ports.ConfigProvider
	storage ports.BucketProvider
	tracer  trace.Tracer
	logger  *slog.Logger

	// Built by Start
	cfg       *config.Config
	repo      ports.SessionRepository
	recording *recording.Service
	server    *server.Server
	errs      chan error

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a Service with the given options. A config provider is
// required; storage defaults to whatever the config names.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		logger: slog.Default(),
		errs:   make(chan error, 1),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if s.config == nil {
		return nil, errors.New("config provider required (use WithFileConfig or WithConfig)")
	}

	return s, nil
}

// Start loads config, builds the storage stack and starts serving HTTP in
// the background. Listener failures are delivered on Errors.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("service already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	cfg, err := s.config.Load(s.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	s.cfg = cfg

	storageName := cfg.Storage.Type
	if s.storage != nil {
		storageName = fmt.Sprintf("%T", s.storage)
	}
	if err := s.initStorage(cfg); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	s.initRecording(cfg)
	s.initServer(cfg)

	go func() {
		if err := s.server.Start(); err != nil {
			s.logger.Error("server stopped", slog.String("error", err.Error()))
			s.errs <- err
		}
	}()

	go s.watchConfig()

	s.logger.Info("session record service started",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage", storageName),
		slog.Int("list_size", cfg.Recording.ListSize),
		slog.Int("max_batch_events", cfg.Recording.MaxBatchEvents))

	return nil
}

// Shutdown stops the HTTP server and releases storage and config watchers.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("shutting down session record service")

	if s.cancel != nil {
		s.cancel()
	}

	var errs []error

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			s.logger.Error("failed to close storage", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if s.config != nil {
		if err := s.config.Close(); err != nil {
			s.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Errors reports a listener that stopped on its own.
func (s *Service) Errors() <-chan error {
	return s.errs
}

// Handler returns the HTTP handler once Start has run.
func (s *Service) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return nil
	}
	return s.server.Router
}

// Config returns the configuration the service is running with.
func (s *Service) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Recording returns the recording service once Start has run.
func (s *Service) Recording() *recording.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

// Repository returns the (possibly traced) repository once Start has run.
func (s *Service) Repository() ports.SessionRepository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo
}

func (s *Service) initStorage(cfg *config.Config) error {
	if s.storage != nil {
		return nil
	}
	provider, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	s.storage = provider
	return nil
}

func (s *Service) initRecording(cfg *config.Config) {
	var repo ports.SessionRepository = kv.New(s.storage,
		kv.WithListSize(cfg.Recording.ListSize),
		kv.WithLogger(s.logger))

	tracer := s.tracer
	if tracer == nil && cfg.Telemetry.Enabled {
		tracer = otel.Tracer(cfg.Telemetry.ServiceName)
	}
	if tracer != nil {
		repo = telemetry.NewTracedRepository(repo, tracer)
	}
	s.repo = repo

	s.recording = recording.NewService(repo,
		recording.WithLogger(s.logger),
		recording.WithMaxBatchEvents(cfg.Recording.MaxBatchEvents))
}

func (s *Service) initServer(cfg *config.Config) {
	s.server = server.New(cfg.Server.Port, cfg.Server.Timeout(), s.logger)
	handler := sessions.NewHandler(s.recording, sessions.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	frontdoor.Mount(s.server.Router, handler.Registrations(""), s.logger)
}

// watchConfig applies hot-reloadable settings when the config changes.
func (s *Service) watchConfig() {
	if err := s.config.Watch(s.ctx, s.reload); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}
}

// reload applies recording.max_batch_events. Server, storage and list size
// changes need a restart.
func (s *Service) reload(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording == nil {
		return
	}

	prev := s.cfg
	s.recording.SetMaxBatchEvents(cfg.Recording.MaxBatchEvents)

	if prev != nil {
		if prev.Server != cfg.Server || prev.Storage != cfg.Storage || prev.Recording.ListSize != cfg.Recording.ListSize {
			s.logger.Warn("config change requires restart to take effect",
				slog.Int("port", cfg.Server.Port),
				slog.String("storage", cfg.Storage.Type),
				slog.Int("list_size", cfg.Recording.ListSize))
		}
		// Keep the values the process is actually running with.
		applied := *prev
		applied.Recording.MaxBatchEvents = cfg.Recording.MaxBatchEvents
		s.cfg = &applied
	}

	s.logger.Info("config reloaded", slog.Int("max_batch_events", cfg.Recording.MaxBatchEvents))
}
