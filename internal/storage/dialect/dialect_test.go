package dialect

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		dialectType DialectType
		wantName    string
		wantErr     bool
	}{
		{"sqlite", SQLite, "sqlite", false},
		{"postgres", Postgres, "postgres", false},
		{"mysql", DialectType("mysql"), "", true},
		{"unknown", DialectType("unknown"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.dialectType)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driverName string
		wantName   string
		wantErr    bool
	}{
		{"sqlite", "sqlite", false},
		{"SQLite3", "sqlite", false},
		{"postgres", "postgres", false},
		{"pgx", "postgres", false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driverName, func(t *testing.T) {
			d, err := FromDriverName(tt.driverName)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDriverName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	query := "UPDATE kv_objects SET value = ? WHERE namespace = ? AND key = ? AND version = ?"

	sqlite, _ := New(SQLite)
	if got := sqlite.Rebind(query); got != query {
		t.Errorf("sqlite Rebind() = %q, want unchanged", got)
	}

	pg, _ := New(Postgres)
	want := "UPDATE kv_objects SET value = $1 WHERE namespace = $2 AND key = $3 AND version = $4"
	if got := pg.Rebind(query); got != want {
		t.Errorf("postgres Rebind() = %q, want %q", got, want)
	}
}

func TestUpsertClause(t *testing.T) {
	conflict := []string{"namespace", "key"}
	update := []string{"value", "version"}

	tests := []struct {
		dialectType DialectType
		want        string
	}{
		{SQLite, "ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, version = excluded.version"},
		{Postgres, "ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, version = EXCLUDED.version"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialectType), func(t *testing.T) {
			d, _ := New(tt.dialectType)
			if got := d.UpsertClause(conflict, update); got != tt.want {
				t.Errorf("UpsertClause() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInsertIgnoreClause(t *testing.T) {
	for _, dt := range []DialectType{SQLite, Postgres} {
		d, _ := New(dt)
		if got, want := d.InsertIgnoreClause([]string{"namespace", "key"}), "ON CONFLICT (namespace, key) DO NOTHING"; got != want {
			t.Errorf("%s InsertIgnoreClause() = %q, want %q", dt, got, want)
		}
	}
}

func TestConnectionSettings(t *testing.T) {
	sqlite, _ := New(SQLite)
	if len(sqlite.InitStatements()) == 0 {
		t.Error("sqlite should have init statements")
	}
	if sqlite.MaxOpenConns() != 1 {
		t.Errorf("sqlite MaxOpenConns() = %d, want 1", sqlite.MaxOpenConns())
	}

	pg, _ := New(Postgres)
	if pg.InitStatements() != nil {
		t.Error("postgres should not have init statements")
	}
	if pg.MaxOpenConns() != 0 {
		t.Errorf("postgres MaxOpenConns() = %d, want 0", pg.MaxOpenConns())
	}
}

func TestRebind_SkipsQuotedLiterals(t *testing.T) {
	pg, _ := New(Postgres)
	got := pg.Rebind("SELECT '?' AS q, value FROM kv_objects WHERE object_key = ?")
	want := "SELECT '?' AS q, value FROM kv_objects WHERE object_key = $1"
	if got != want {
		t.Errorf("Rebind() = %q, want %q", got, want)
	}
}

func TestObjectTableDDL(t *testing.T) {
	tests := []struct {
		dialectType DialectType
		contains    []string
	}{
		{SQLite, []string{"CREATE TABLE IF NOT EXISTS kv_objects", "value BLOB", "updated_at TIMESTAMP NOT NULL", "PRIMARY KEY (namespace, object_key)"}},
		{Postgres, []string{"value BYTEA", "updated_at TIMESTAMP WITH TIME ZONE"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialectType), func(t *testing.T) {
			d, _ := New(tt.dialectType)
			ddl := d.ObjectTableDDL("kv_objects")
			for _, want := range tt.contains {
				if !strings.Contains(ddl, want) {
					t.Errorf("ObjectTableDDL() missing %q:\n%s", want, ddl)
				}
			}
		})
	}
}
