// Package postgres implements the PostgreSQL client.
//
// Column metadata comes from preparing the statement; rows are read through
// the simple query protocol. SQL NULL is reported as Null and every other
// value as Text.
//
// A cancelled or expired context sends the server a cancel request instead
// of closing the connection, so the client stays usable afterwards.
package postgres

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgconn/ctxwatch"
	"github.com/joacominatel/sqlzen/internal/database"
)

// Client implements database.Client for PostgreSQL over a single connection.
type Client struct {
	mu      sync.Mutex // pgconn is not safe for concurrent use
	conn    *pgx.Conn
	logger  *slog.Logger
	closing atomic.Bool
	done    chan struct{}
}

const (
	// cancelRequestDelay is how long after ctx ends the cancel request is sent.
	cancelRequestDelay = 0
	// deadlineDelay bounds the wait for the server to honour the cancel
	// before the socket deadline fires and the connection is lost.
	deadlineDelay = 10 * time.Second
)

// Connect opens a connection using a libpq-style URL or keyword/value string.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg, err := parseConfig(url)
	if err != nil {
		return nil, database.Engine(database.Postgres, err)
	}

	logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
	)

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, database.Engine(database.Postgres, err)
	}

	c := &Client{
		conn:   conn,
		logger: logger.With(slog.String("driver", string(database.Postgres))),
		done:   make(chan struct{}),
	}
	go c.supervise()
	return c, nil
}

func parseConfig(url string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.BuildContextWatcherHandler = func(pc *pgconn.PgConn) ctxwatch.Handler {
		return &pgconn.CancelRequestContextWatcherHandler{
			Conn:               pc,
			CancelRequestDelay: cancelRequestDelay,
			DeadlineDelay:      deadlineDelay,
		}
	}
	return cfg, nil
}

// supervise waits for the connection's resources to be released and logs
// how it ended. It never feeds back into query results.
func (c *Client) supervise() {
	defer close(c.done)
	<-c.conn.PgConn().CleanupDone()

	if c.closing.Load() {
		c.logger.Debug("postgres connection closed")
		return
	}
	c.logger.Warn("postgres connection terminated",
		slog.Uint64("pid", uint64(c.conn.PgConn().PID())),
	)
}

// Query runs sql and returns its columns with engine type OIDs and its rows as text.
func (c *Client) Query(ctx context.Context, sql string) (*database.QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pg := c.conn.PgConn()
	if pg.IsClosed() {
		return nil, database.Engine(database.Postgres, database.ErrClosed)
	}

	sd, err := pg.Prepare(ctx, "", sql, nil)
	if err != nil {
		return nil, database.Engine(database.Postgres, err)
	}

	columns := make([]database.Column, len(sd.Fields))
	for i, f := range sd.Fields {
		oid := f.DataTypeOID
		columns[i] = database.Column{Name: f.Name, TypeID: &oid}
	}
	result := database.NewQueryResult(columns)

	results, err := pg.Exec(ctx, sql).ReadAll()
	if err != nil {
		return nil, database.Engine(database.Postgres, err)
	}
	for _, r := range results {
		if r.Err != nil {
			return nil, database.Engine(database.Postgres, r.Err)
		}
		for _, row := range r.Rows {
			result.Rows = append(result.Rows, textRow(row, len(columns)))
		}
	}

	return result, nil
}

// textRow converts a simple protocol data row. Values missing from the wire
// row become empty text.
func textRow(values [][]byte, width int) []database.CellValue {
	cells := make([]database.CellValue, width)
	for i := range cells {
		switch {
		case i >= len(values):
			cells[i] = database.Text("")
		case values[i] == nil:
			cells[i] = database.Null()
		default:
			cells[i] = database.Text(string(values[i]))
		}
	}
	return cells
}

// Close terminates the connection and waits for the supervisor to observe it.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closing.Store(true)
	err := c.conn.Close(context.Background())
	<-c.done
	return err
}

// Done is closed once the underlying connection has been torn down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

var _ database.Client = (*Client)(nil)
