// Package dialect holds the SQL differences the object table cares about.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect describes one SQL database flavour. Values are immutable and
// shared; use New or FromDriverName to get one.
type Dialect struct {
	name      string
	driver    string
	blob      string
	timestamp string
	excluded  string
	numbered  bool
	maxConns  int
	initSQL   []string
}

// DialectType names a supported database.
type DialectType string

const (
	SQLite   DialectType = "sqlite"
	Postgres DialectType = "postgres"
)

var (
	sqlite = &Dialect{
		name:      "sqlite",
		driver:    "sqlite",
		blob:      "BLOB",
		timestamp: "TIMESTAMP",
		excluded:  "excluded",
		// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
		maxConns: 1,
		initSQL: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		},
	}

	postgres = &Dialect{
		name:      "postgres",
		driver:    "pgx",
		blob:      "BYTEA",
		timestamp: "TIMESTAMP WITH TIME ZONE",
		excluded:  "EXCLUDED",
		numbered:  true,
	}
)

// New returns the dialect for dialectType.
func New(dialectType DialectType) (*Dialect, error) {
	switch dialectType {
	case SQLite:
		return sqlite, nil
	case Postgres:
		return postgres, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialectType)
	}
}

// FromDriverName maps a database/sql driver name onto its dialect.
func FromDriverName(driverName string) (*Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return sqlite, nil
	case "postgres", "pgx":
		return postgres, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

// Name returns "sqlite" or "postgres".
func (d *Dialect) Name() string { return d.name }

// DriverName returns the database/sql driver to open.
func (d *Dialect) DriverName() string { return d.driver }

// MaxOpenConns returns the connection pool cap, or 0 for no cap.
func (d *Dialect) MaxOpenConns() int { return d.maxConns }

// InitStatements run once after the connection pool is opened.
func (d *Dialect) InitStatements() []string { return d.initSQL }

// Rebind converts ? placeholders to the dialect's form. Question marks
// inside single-quoted literals are left alone.
func (d *Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	quoted := false
	for _, ch := range query {
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteRune(ch)
		case ch == '?' && !quoted:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// ObjectTableDDL returns the CREATE TABLE statement for a versioned
// key/value table keyed by (namespace, object_key).
func (d *Dialect) ObjectTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	namespace TEXT NOT NULL,
	object_key TEXT NOT NULL,
	value %s NOT NULL,
	version BIGINT NOT NULL,
	updated_at %s NOT NULL,
	PRIMARY KEY (namespace, object_key)
)`, table, d.blob, d.timestamp)
}

// UpsertClause returns the ON CONFLICT clause that overwrites updateColumns
// with the values from the rejected insert.
func (d *Dialect) UpsertClause(conflictColumns, updateColumns []string) string {
	target := strings.Join(conflictColumns, ", ")
	if len(updateColumns) == 0 {
		return d.InsertIgnoreClause(conflictColumns)
	}
	sets := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		sets[i] = col + " = " + d.excluded + "." + col
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", target, strings.Join(sets, ", "))
}

// InsertIgnoreClause returns the clause that turns a conflicting insert
// into a no-op.
func (d *Dialect) InsertIgnoreClause(conflictColumns []string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(conflictColumns, ", "))
}
