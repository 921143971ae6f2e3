// Package history records executed statements in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// sqlite driver
	_ "modernc.org/sqlite"
)

// Entry is one executed statement.
type Entry struct {
	ID        string
	Key       string
	Driver    string
	SQL       string
	StartedAt time.Time
	Duration  time.Duration
	Rows      int
	Error     string
}

// Failed reports whether the execution returned an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Store persists entries.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the history database at path, creating the file and its
// directory if needed, and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e. A missing ID or start time is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, connection_key, driver, sql, started_at, duration_us, row_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Key, e.Driver, e.SQL, e.StartedAt.UnixMicro(), e.Duration.Microseconds(), e.Rows, errText,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty key returns
// entries for every connection.
func (s *Store) Recent(ctx context.Context, key string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, connection_key, driver, sql, started_at, duration_us, row_count, error
		FROM executions`
	args := []any{}
	if key != "" {
		query += ` WHERE connection_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			startedAt int64
			duration  int64
			errText   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Key, &e.Driver, &e.SQL, &startedAt, &duration, &e.Rows, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.StartedAt = time.UnixMicro(startedAt)
		e.Duration = time.Duration(duration) * time.Microsecond
		e.Error = errText.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return entries, nil
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM executions`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}
