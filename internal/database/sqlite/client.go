// Package sqlite implements the SQLite client on the pure Go modernc engine.
//
// The engine handle is owned by a single worker goroutine. Callers submit
// work to it and wait for the reply, so statements never run concurrently
// against the same connection. Values are read by their storage class
// straight from the engine, so stored text is returned exactly as written
// whatever the column's declared type.
package sqlite

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joacominatel/sqlzen/internal/database"
)

// call is one unit of work for the worker.
type call struct {
	ctx   context.Context
	fn    func(ctx context.Context, h *handle) error
	reply chan error
}

// Client implements database.Client for SQLite.
type Client struct {
	h      *handle
	logger *slog.Logger

	calls     chan call
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Connect opens the database file at path, creating it if needed.
// Use ":memory:" for a private in-memory database.
func Connect(ctx context.Context, path string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := database.CheckFilePath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, err := openHandle(path)
	if err != nil {
		return nil, &database.IoError{Op: "open", Path: path, Err: err}
	}
	// Reading the schema rejects files that are not databases.
	if err := h.each("PRAGMA schema_version", drain); err != nil {
		_ = h.close()
		return nil, database.Engine(database.SQLite, err)
	}

	c := &Client{
		h:      h,
		logger: logger.With(slog.String("driver", string(database.SQLite))),
		calls:  make(chan call),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.run()

	c.logger.Debug("sqlite database opened", slog.String("path", path))
	return c, nil
}

func drain(s *stmt) error {
	for {
		more, err := s.step()
		if err != nil || !more {
			return err
		}
	}
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case req := <-c.calls:
			if err := req.ctx.Err(); err != nil {
				req.reply <- err
				continue
			}
			req.reply <- req.fn(req.ctx, c.h)
		}
	}
}

// do runs fn on the worker and waits for it to finish. A done ctx
// interrupts the running statement.
func (c *Client) do(ctx context.Context, fn func(ctx context.Context, h *handle) error) error {
	req := call{ctx: ctx, fn: fn, reply: make(chan error, 1)}

	select {
	case c.calls <- req:
	case <-c.done:
		return database.Engine(database.SQLite, database.ErrClosed)
	case <-ctx.Done():
		return ctx.Err()
	}

	err := <-req.reply
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		return ctxErr
	}
	return err
}

// Query runs sql and returns natively typed cells. When sql holds several
// statements they all run, and the result is that of the last statement
// returning columns.
func (c *Client) Query(ctx context.Context, query string) (*database.QueryResult, error) {
	var result *database.QueryResult
	err := c.do(ctx, func(ctx context.Context, h *handle) error {
		interrupted := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			h.interrupt()
			close(interrupted)
		})
		defer func() {
			if !stop() {
				<-interrupted
			}
		}()

		return h.each(query, func(s *stmt) error {
			res, err := c.read(s)
			if err != nil {
				return err
			}
			if result == nil || len(res.Columns) > 0 {
				result = res
			}
			return nil
		})
	})
	if err != nil {
		return nil, database.Engine(database.SQLite, err)
	}
	if result == nil {
		result = database.NewQueryResult(nil)
	}
	return result, nil
}

// read steps s to completion. type_id is never set; type_name is the
// declared column type, verbatim.
func (c *Client) read(s *stmt) (*database.QueryResult, error) {
	n := s.columnCount()
	columns := make([]database.Column, n)
	for i := range columns {
		columns[i] = database.Column{Name: s.columnName(i)}
		if decl, ok := s.declType(i); ok && decl != "" {
			columns[i].TypeName = &decl
		}
	}
	result := database.NewQueryResult(columns)

	for {
		more, err := s.step()
		if err != nil {
			return nil, err
		}
		if !more {
			return result, nil
		}
		cells := make([]database.CellValue, n)
		for i := range cells {
			cells[i] = s.cell(i)
		}
		result.Rows = append(result.Rows, cells)
	}
}

// Close stops the worker and closes the database. It is safe to call more
// than once; later calls return the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.done
		c.closeErr = c.h.close()
	})
	return c.closeErr
}

var _ database.Client = (*Client)(nil)
