package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joacominatel/sqlzen/internal/app"
	"github.com/joacominatel/sqlzen/internal/config"
	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/joacominatel/sqlzen/internal/history"
	"github.com/spf13/viper"
)

// Env is the loaded configuration shared by every command.
type Env struct {
	Viper  *viper.Viper
	Config *config.Config
	Logger *slog.Logger

	logFile *os.File
}

// Close releases the log file, if any.
func (e *Env) Close() error {
	if e.logFile == nil {
		return nil
	}
	err := e.logFile.Close()
	e.logFile = nil
	return err
}

// Target is a connection to open under a registry key.
type Target struct {
	Key    string
	Driver database.DriverKind
	URL    string
}

// Resolve looks up a saved connection by name. An empty name selects the
// configured default.
func (e *Env) Resolve(name string) (Target, error) {
	var conn *config.Connection
	if name == "" {
		conn = e.Config.DefaultConnection()
		if conn == nil {
			return Target{}, &app.ErrConfig{Cause: errors.New("no connection given and no default_connection configured")}
		}
	} else {
		var ok bool
		conn, ok = e.Config.FindConnection(name)
		if !ok {
			return Target{}, &app.ErrConfig{Cause: fmt.Errorf("unknown connection %q", name)}
		}
	}

	kind, err := conn.Kind()
	if err != nil {
		return Target{}, &app.ErrConfig{Cause: err}
	}
	url, err := conn.ResolveURL()
	if err != nil {
		return Target{}, &app.ErrConfig{Cause: err}
	}
	return Target{Key: conn.Name, Driver: kind, URL: url}, nil
}

// Session bundles a registry with the history store recording into it.
type Session struct {
	*app.Service
	History *history.Store
	env     *Env
}

// NewSession creates a registry. When history is enabled the store is
// opened and wired as the recorder; a store that cannot be opened only
// disables history.
func (e *Env) NewSession(ctx context.Context) *Session {
	opts := []app.Option{app.WithLogger(e.Logger)}

	s := &Session{env: e}
	if e.Config.History.Enabled {
		store, err := history.Open(ctx, e.Config.History.Path)
		if err != nil {
			e.Logger.Warn("history disabled", slog.String("error", err.Error()))
		} else {
			s.History = store
			opts = append(opts, app.WithRecorder(store))
		}
	}
	s.Service = app.NewService(opts...)
	return s
}

// Open connects t under its key, bounded by the connect timeout.
func (s *Session) Open(ctx context.Context, t Target) error {
	ctx, cancel := withTimeout(ctx, s.env.Config.Preferences.ConnectTimeout)
	defer cancel()
	return s.Connect(ctx, t.Key, t.Driver, t.URL)
}

// QueryContext derives the per-query deadline.
func (s *Session) QueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, s.env.Config.Preferences.QueryTimeout)
}

// Close closes every connection, then the history store.
func (s *Session) Close() error {
	err := s.Service.Close()
	if s.History != nil {
		err = errors.Join(err, s.History.Close())
	}
	return err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
