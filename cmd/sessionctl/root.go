package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropcart/session-record-service/internal/client"
	"github.com/dropcart/session-record-service/internal/config"
	"github.com/dropcart/session-record-service/internal/core/domain"
	"github.com/dropcart/session-record-service/internal/recording"
	"github.com/dropcart/session-record-service/internal/storage"
	"github.com/dropcart/session-record-service/internal/storage/kv"
)

var (
	version = "dev"
	commit  = "unknown"
)

// sessionSource is what the read commands need. The recording service
// satisfies it directly; remoteSource adapts the HTTP client.
type sessionSource interface {
	List(ctx context.Context, limit, offset int) ([]*domain.SessionMetadata, error)
	Session(ctx context.Context, sessionID string) (*domain.SessionMetadata, error)
	Events(ctx context.Context, sessionID string) ([]domain.SessionEvent, error)
}

type remoteSource struct {
	c *client.Client
}

func (r remoteSource) List(ctx context.Context, limit, offset int) ([]*domain.SessionMetadata, error) {
	return r.c.ListSessions(ctx, limit, offset)
}

func (r remoteSource) Session(ctx context.Context, sessionID string) (*domain.SessionMetadata, error) {
	return r.c.GetSession(ctx, sessionID)
}

func (r remoteSource) Events(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	return r.c.GetEvents(ctx, sessionID)
}

type rootOptions struct {
	configPath string
	serverURL  string
	output     string
	verbose    bool
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLocalOrRemote reads from --server when set, otherwise straight from
// the storage named in the config file.
func openLocalOrRemote(o *rootOptions) (sessionSource, func() error, error) {
	if o.serverURL != "" {
		return remoteSource{c: client.NewClient(o.serverURL, client.WithUserAgent("sessionctl/"+version))},
			func() error { return nil }, nil
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	provider, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	logger := o.logger(os.Stderr)
	repo := kv.New(provider, kv.WithListSize(cfg.Recording.ListSize), kv.WithLogger(logger))
	return recording.NewService(repo, recording.WithLogger(logger)), provider.Close, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Inspect recorded browser sessions",
		Long: `Inspect the sessions captured by session-record-service.

Reads straight from the configured storage, or from a running service
when --server is given.

Quick Start:
  sessionctl list                      # Most recent sessions
  sessionctl show <session-id>         # Metadata for one session
  sessionctl events <session-id> -o json`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputTable, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Path to config.yaml")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", "", "Base URL of a running service (e.g. http://localhost:8080)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table, json or yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newListCmd(opts), newShowCmd(opts), newEventsCmd(opts))
	return root
}

// withSource opens the session source for the duration of fn.
func withSource(cmd *cobra.Command, opts *rootOptions, fn func(sessionSource) error) error {
	src, closeFn, err := openLocalOrRemote(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			opts.logger(cmd.ErrOrStderr()).Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}()
	return fn(src)
}
