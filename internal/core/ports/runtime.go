package ports

import (
	"context"

	"github.com/dropcart/session-record-service/internal/config"
)

// ConfigProvider supplies the service configuration. Watch invokes
// onChange with each successfully reloaded config until ctx is done;
// providers with nothing to watch return nil immediately.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}
