package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/joacominatel/sqlzen/internal/history"
)

// Recorder receives one entry per executed statement.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// ConnectionInfo describes a live registry entry.
type ConnectionInfo struct {
	Key         string              `json:"key"`
	Driver      database.DriverKind `json:"driver"`
	ConnectedAt time.Time           `json:"connectedAt"`
}

type entry struct {
	info   ConnectionInfo
	client database.Client
	// inflight counts queries holding the client. Add is only called while
	// the entry is in the map and the registry lock is held.
	inflight sync.WaitGroup
}

// Service is the connection registry: it binds caller-chosen keys to live
// clients and routes queries to them.
type Service struct {
	mu    sync.Mutex
	conns map[string]*entry

	connect  Connector
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	retiring sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithConnector replaces the adapter dispatch.
func WithConnector(c Connector) Option {
	return func(s *Service) {
		s.connect = c
	}
}

// WithRecorder records every query execution.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithLogger sets the logger passed to adapters.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an empty registry.
func NewService(opts ...Option) *Service {
	s := &Service{
		conns:   make(map[string]*entry),
		connect: Connect,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a client for driver and url and binds it to key, replacing
// any previous binding. The registry lock is held for the whole span, so
// concurrent connects never interleave. On failure the registry is unchanged.
func (s *Service) Connect(ctx context.Context, key string, driver database.DriverKind, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With(slog.String("key", key))
	client, err := s.connect(ctx, driver, url, logger)
	if err != nil {
		logger.Debug("connect failed", slog.String("driver", string(driver)), slog.String("error", err.Error()))
		return &ErrConnection{Key: key, Driver: driver, Cause: err}
	}

	if old, ok := s.conns[key]; ok {
		s.retire(old)
	}
	s.conns[key] = &entry{
		info:   ConnectionInfo{Key: key, Driver: driver, ConnectedAt: s.now()},
		client: client,
	}

	logger.Debug("connected", slog.String("driver", string(driver)))
	return nil
}

// retire closes a replaced client once its in-flight queries finish.
func (s *Service) retire(e *entry) {
	s.retiring.Add(1)
	go func() {
		defer s.retiring.Done()
		e.inflight.Wait()
		if err := closeClient(e.client); err != nil {
			s.logger.Warn("closing replaced connection failed",
				slog.String("key", e.info.Key),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// acquire looks up key and marks the entry in use. The caller must call
// release on the returned entry.
func (s *Service) acquire(key string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.conns[key]
	if !ok {
		return nil, &database.NotFoundError{Key: key}
	}
	e.inflight.Add(1)
	return e, nil
}

func (e *entry) release() {
	e.inflight.Done()
}

// Query runs sql against the connection bound to key. The registry lock
// covers only the lookup; the adapter serializes its own callers.
func (s *Service) Query(ctx context.Context, key, sql string) (*database.QueryResult, error) {
	e, err := s.acquire(key)
	if err != nil {
		return nil, &ErrQuery{Key: key, Query: sql, Cause: err}
	}
	defer e.release()

	return s.run(ctx, e, sql)
}

func (s *Service) run(ctx context.Context, e *entry, sql string) (*database.QueryResult, error) {
	start := s.now()
	result, err := e.client.Query(ctx, sql)
	if err == nil {
		err = result.Validate()
	}
	s.record(ctx, e, sql, start, result, err)

	if err != nil {
		return nil, &ErrQuery{Key: e.info.Key, Query: sql, Cause: err}
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, e *entry, sql string, start time.Time, result *database.QueryResult, err error) {
	if s.recorder == nil {
		return
	}
	rec := history.Entry{
		Key:       e.info.Key,
		Driver:    string(e.info.Driver),
		SQL:       sql,
		StartedAt: start,
		Duration:  s.now().Sub(start),
	}
	if err != nil {
		rec.Error = database.Message(err)
	} else {
		rec.Rows = len(result.Rows)
	}
	// A canceled caller still gets its execution recorded.
	if rerr := s.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
		s.logger.Warn("recording execution failed", slog.String("error", rerr.Error()))
	}
}

// Ping runs the driver's version query on key and returns the first cell.
func (s *Service) Ping(ctx context.Context, key string) (string, error) {
	e, err := s.acquire(key)
	if err != nil {
		return "", &ErrQuery{Key: key, Cause: err}
	}
	defer e.release()

	query := e.info.Driver.VersionQuery()
	result, err := e.client.Query(ctx, query)
	if err != nil {
		return "", &ErrQuery{Key: key, Query: query, Cause: err}
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return "", nil
	}
	return strings.TrimSpace(result.Rows[0][0].String()), nil
}

// Driver returns the engine bound to key.
func (s *Service) Driver(key string) (database.DriverKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.conns[key]
	if !ok {
		return "", false
	}
	return e.info.Driver, true
}

// Connections lists live entries sorted by key.
func (s *Service) Connections() []ConnectionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ConnectionInfo, 0, len(s.conns))
	for _, e := range s.conns {
		out = append(out, e.info)
	}
	slices.SortFunc(out, func(a, b ConnectionInfo) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

// Close empties the registry and closes every client after its in-flight
// queries finish. It also waits for replaced clients still being retired.
func (s *Service) Close() error {
	s.mu.Lock()
	entries := s.conns
	s.conns = make(map[string]*entry)
	s.mu.Unlock()

	var errs []error
	for _, e := range entries {
		e.inflight.Wait()
		if err := closeClient(e.client); err != nil {
			errs = append(errs, err)
		}
	}
	s.retiring.Wait()
	return errors.Join(errs...)
}

func closeClient(c database.Client) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
