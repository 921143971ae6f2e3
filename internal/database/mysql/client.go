// Package mysql implements the MySQL client on top of database/sql.
//
// Statements are prepared first and then executed, so the column set is the
// one the server describes for the statement. Statements the server cannot
// prepare run as plain text queries instead.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joacominatel/sqlzen/internal/database"
)

// UnknownTypeID is reported for every column: the driver surfaces no stable
// type OID at this layer.
const UnknownTypeID uint32 = 0

// errUnsupportedPS is ER_UNSUPPORTED_PS: the statement cannot be prepared.
const errUnsupportedPS = 1295

// Client implements database.Client for MySQL. The underlying *sql.DB pools
// connections natively, so concurrent queries do not block each other.
type Client struct {
	db     *sql.DB
	logger *slog.Logger
}

// Connect opens a pool for a go-sql-driver DSN (user:pass@tcp(host:3306)/db)
// and verifies it with a ping.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Client, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, database.Engine(database.MySQL, err)
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, database.Engine(database.MySQL, err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, database.Engine(database.MySQL, err)
	}

	return New(db, logger), nil
}

// New wraps an existing pool.
func New(db *sql.DB, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		db:     db,
		logger: logger.With(slog.String("driver", string(database.MySQL))),
	}
}

// Query runs sql and returns every cell as text. Cells that cannot be decoded
// are reported as empty text instead of failing the whole result.
func (c *Client) Query(ctx context.Context, query string) (*database.QueryResult, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, database.Engine(database.MySQL, err)
	}
	defer func() { _ = conn.Close() }()

	rows, release, err := c.run(ctx, conn, query)
	if err != nil {
		return nil, database.Engine(database.MySQL, err)
	}
	defer release()
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, database.Engine(database.MySQL, err)
	}

	columns := make([]database.Column, len(names))
	for i, name := range names {
		typeID := UnknownTypeID
		columns[i] = database.Column{Name: name, TypeID: &typeID}
	}
	result := database.NewQueryResult(columns)

	values := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		clear(values)
		if err := rows.Scan(dest...); err != nil {
			c.logger.Debug("row decode failed", slog.String("error", err.Error()))
			result.Rows = append(result.Rows, emptyRow(len(names)))
			continue
		}

		cells := make([]database.CellValue, len(names))
		for i, v := range values {
			cell, ok := textCell(v)
			if !ok {
				c.logger.Debug("cell decode failed",
					slog.String("column", names[i]),
					slog.String("type", typeName(v)),
				)
			}
			cells[i] = cell
		}
		result.Rows = append(result.Rows, cells)
	}

	if err := rows.Err(); err != nil {
		return nil, database.Engine(database.MySQL, err)
	}

	return result, nil
}

// run prepares query on conn and executes the prepared statement. release
// closes the statement and must be called after the rows are closed.
func (c *Client) run(ctx context.Context, conn *sql.Conn, query string) (*sql.Rows, func(), error) {
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		var myErr *mysql.MySQLError
		if !errors.As(err, &myErr) || myErr.Number != errUnsupportedPS {
			return nil, nil, err
		}
		c.logger.Debug("statement cannot be prepared, running as text")
		rows, err := conn.QueryContext(ctx, query)
		return rows, func() {}, err
	}

	release := func() { _ = stmt.Close() }
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		release()
		return nil, nil, err
	}
	return rows, release, nil
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// textCell renders a driver value as a text cell. ok is false when the value
// has no textual form and the empty default was used.
func textCell(v any) (database.CellValue, bool) {
	switch v := v.(type) {
	case nil:
		return database.Null(), true
	case []byte:
		return database.Text(string(v)), true
	case string:
		return database.Text(v), true
	case int64:
		return database.Text(strconv.FormatInt(v, 10)), true
	case uint64:
		return database.Text(strconv.FormatUint(v, 10)), true
	case float64:
		return database.Text(strconv.FormatFloat(v, 'g', -1, 64)), true
	case float32:
		return database.Text(strconv.FormatFloat(float64(v), 'g', -1, 32)), true
	case bool:
		if v {
			return database.Text("1"), true
		}
		return database.Text("0"), true
	case time.Time:
		return database.Text(v.Format("2006-01-02 15:04:05.999999")), true
	default:
		return database.Text(""), false
	}
}

func emptyRow(width int) []database.CellValue {
	cells := make([]database.CellValue, width)
	for i := range cells {
		cells[i] = database.Text("")
	}
	return cells
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

var _ database.Client = (*Client)(nil)
