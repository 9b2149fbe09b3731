// Package storage opens the bucket provider named by configuration.
package storage

import (
	"fmt"

	"github.com/dropcart/session-record-service/internal/config"
	"github.com/dropcart/session-record-service/internal/core/ports"
	"github.com/dropcart/session-record-service/internal/storage/memory"
	"github.com/dropcart/session-record-service/internal/storage/sqldb"
)

// Open returns the bucket provider for cfg.Type: "memory", "sqlite" or
// "postgres". The postgres driver must be registered by the binary.
func Open(cfg config.StorageConfig) (ports.BucketProvider, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "", "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = "./data/sessions.db"
		}
		store, err := sqldb.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	case "postgres", "database":
		driver := cfg.Database.Driver
		if driver == "" {
			driver = "postgres"
		}
		store, err := sqldb.New(sqldb.Config{Driver: driver, DSN: cfg.Database.DSN})
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", driver, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", cfg.Type)
	}
}
