// Package duckdb implements the DuckDB client.
package duckdb

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/joacominatel/sqlzen/internal/database"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Client implements database.Client for DuckDB. Connections opened by the
// pool share one database instance, including for ":memory:".
type Client struct {
	db     *sql.DB
	logger *slog.Logger
}

// Connect opens the DuckDB database at path. An empty path or ":memory:"
// opens an in-memory database.
func Connect(ctx context.Context, path string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path == ":memory:" {
		path = ""
	}
	if err := database.CheckFilePath(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, &database.IoError{Op: "open", Path: path, Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, database.Engine(database.DuckDB, err)
	}

	return &Client{
		db:     db,
		logger: logger.With(slog.String("driver", string(database.DuckDB))),
	}, nil
}

// Query runs sql and returns typed cells. Values without a direct cell
// variant, such as decimals and intervals, are rendered as text; dates and
// times use the engine's own layout for the column type.
func (c *Client) Query(ctx context.Context, query string) (*database.QueryResult, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, database.Engine(database.DuckDB, err)
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, database.Engine(database.DuckDB, err)
	}

	columns := make([]database.Column, len(types))
	for i, ct := range types {
		columns[i] = database.Column{Name: ct.Name()}
		if name := ct.DatabaseTypeName(); name != "" {
			columns[i].TypeName = &name
		}
	}
	result := database.NewQueryResult(columns)

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		clear(values)
		if err := rows.Scan(dest...); err != nil {
			c.logger.Debug("row decode failed", slog.String("error", err.Error()))
			result.Rows = append(result.Rows, database.NullRow(len(columns)))
			continue
		}

		cells := make([]database.CellValue, len(columns))
		for i, v := range values {
			cells[i], _ = database.CellFromColumn(types[i].DatabaseTypeName(), v)
		}
		result.Rows = append(result.Rows, cells)
	}

	if err := rows.Err(); err != nil {
		return nil, database.Engine(database.DuckDB, err)
	}
	return result, nil
}

// Close closes the database.
func (c *Client) Close() error {
	return c.db.Close()
}

var _ database.Client = (*Client)(nil)
