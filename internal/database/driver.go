package database

import (
	"context"
	"fmt"
	"strings"
)

// Client executes SQL against one live connection and returns a normalized
// result. All implementations must be safe for concurrent use; concurrent
// calls are serialized by the implementation's own discipline.
type Client interface {
	Query(ctx context.Context, sql string) (*QueryResult, error)
}

// DriverKind names a supported database engine.
type DriverKind string

const (
	Postgres DriverKind = "postgresql"
	MySQL    DriverKind = "mysql"
	SQLite   DriverKind = "sqlite"
	DuckDB   DriverKind = "duckdb"
)

// DriverKinds lists every supported engine in display order.
func DriverKinds() []DriverKind {
	return []DriverKind{Postgres, MySQL, SQLite, DuckDB}
}

// ParseDriverKind maps a driver name, or one of its common aliases, to a DriverKind.
func ParseDriverKind(s string) (DriverKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	}
	return "", &UnknownDriverError{Driver: s}
}

func (k DriverKind) String() string {
	return string(k)
}

// MarshalText implements encoding.TextMarshaler.
func (k DriverKind) MarshalText() ([]byte, error) {
	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DriverKind) UnmarshalText(b []byte) error {
	parsed, err := ParseDriverKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// VersionQuery returns a statement reporting the server or library version.
func (k DriverKind) VersionQuery() string {
	switch k {
	case SQLite:
		return "SELECT sqlite_version()"
	default:
		return "SELECT version()"
	}
}

// UnknownDriverError is returned for a driver name no adapter handles.
type UnknownDriverError struct {
	Driver string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown driver %q (available: %s)", e.Driver, joinKinds(DriverKinds()))
}

func joinKinds(kinds []DriverKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
