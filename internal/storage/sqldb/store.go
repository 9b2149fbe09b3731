// Package sqldb provides a SQL implementation of ports.BucketProvider.
// Every bucket is a namespace inside a single kv_objects table.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dropcart/session-record-service/internal/core/ports"
	"github.com/dropcart/session-record-service/internal/storage/dialect"
)

const objectTable = "kv_objects"

// Store is a SQL implementation of ports.BucketProvider that supports
// multiple database dialects.
type Store struct {
	db      *sqlx.DB
	dialect *dialect.Dialect
}

var _ ports.BucketProvider = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if n := d.MaxOpenConns(); n > 0 {
		db.SetMaxOpenConns(n)
	}

	for _, stmt := range d.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a SQLite store, creating the parent directory of a
// file path if needed.
func NewSQLite(dbPath string) (*Store, error) {
	if !strings.HasPrefix(dbPath, "file:") && dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() *dialect.Dialect {
	return s.dialect
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(s.dialect.ObjectTableDDL(objectTable))
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Bucket returns a view of the named namespace.
func (s *Store) Bucket(name string) ports.Bucket {
	return &bucket{store: s, namespace: name}
}

type bucket struct {
	store     *Store
	namespace string
}

type objectRow struct {
	Value     []byte    `db:"value"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (b *bucket) Get(ctx context.Context, key string) (*ports.Object, error) {
	query := b.store.dialect.Rebind(`SELECT value, version, updated_at FROM kv_objects
WHERE namespace = ? AND object_key = ?`)

	var row objectRow
	if err := b.store.db.GetContext(ctx, &row, query, b.namespace, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", b.namespace, key, ports.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", b.namespace, key, err)
	}

	return &ports.Object{
		Key:       key,
		Value:     row.Value,
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (b *bucket) Put(ctx context.Context, key string, value []byte) (*ports.Object, error) {
	now := time.Now().UTC()
	query := b.store.dialect.Rebind(fmt.Sprintf(`INSERT INTO kv_objects (namespace, object_key, value, version, updated_at)
VALUES (?, ?, ?, 1, ?)
%s, version = kv_objects.version + 1
RETURNING version`,
		b.store.dialect.UpsertClause([]string{"namespace", "object_key"}, []string{"value", "updated_at"})))

	var version int64
	if err := b.store.db.QueryRowxContext(ctx, query, b.namespace, key, value, now).Scan(&version); err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", b.namespace, key, err)
	}

	return &ports.Object{Key: key, Value: value, Version: version, UpdatedAt: now}, nil
}

func (b *bucket) PutIf(ctx context.Context, key string, value []byte, version int64) (*ports.Object, error) {
	now := time.Now().UTC()

	var (
		result sql.Result
		err    error
	)
	if version == 0 {
		query := b.store.dialect.Rebind(fmt.Sprintf(`INSERT INTO kv_objects (namespace, object_key, value, version, updated_at)
VALUES (?, ?, ?, 1, ?)
%s`, b.store.dialect.InsertIgnoreClause([]string{"namespace", "object_key"})))
		result, err = b.store.db.ExecContext(ctx, query, b.namespace, key, value, now)
	} else {
		query := b.store.dialect.Rebind(`UPDATE kv_objects SET value = ?, version = version + 1, updated_at = ?
WHERE namespace = ? AND object_key = ? AND version = ?`)
		result, err = b.store.db.ExecContext(ctx, query, value, now, b.namespace, key, version)
	}
	if err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", b.namespace, key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", b.namespace, key, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%s/%s: expected version %d: %w", b.namespace, key, version, ports.ErrVersionConflict)
	}

	return &ports.Object{Key: key, Value: value, Version: version + 1, UpdatedAt: now}, nil
}
