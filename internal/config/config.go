package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joacominatel/sqlzen/internal/database"
)

// Config represents the application configuration.
type Config struct {
	Connections []Connection `mapstructure:"connections" yaml:"connections"`
	Preferences Preferences  `mapstructure:"preferences" yaml:"preferences"`
	Logging     Logging      `mapstructure:"logging" yaml:"logging"`
	History     History      `mapstructure:"history" yaml:"history"`
	Server      Server       `mapstructure:"server" yaml:"server"`
}

// Connection represents a saved connection profile. URL is the
// engine-native connection string; when Keyring is set it lives in the OS
// keyring instead of the file.
type Connection struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Driver  string `mapstructure:"driver" yaml:"driver"`
	URL     string `mapstructure:"url" yaml:"url,omitempty"`
	Keyring bool   `mapstructure:"keyring" yaml:"keyring,omitempty"`
}

// Preferences holds user preferences. Zero timeouts mean no deadline.
type Preferences struct {
	Theme             string        `mapstructure:"theme" yaml:"theme"`
	DefaultConnection string        `mapstructure:"default_connection" yaml:"default_connection"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// History configures the execution history store.
type History struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Server configures the HTTP boundary.
type Server struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Kind returns the parsed driver.
func (c Connection) Kind() (database.DriverKind, error) {
	return database.ParseDriverKind(c.Driver)
}

var passwordParam = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// DisplayString returns a summary of the connection with any password removed.
func (c Connection) DisplayString() string {
	if c.Keyring && c.URL == "" {
		return c.Driver + " (keyring)"
	}
	kind, err := c.Kind()
	if err != nil {
		return c.URL
	}
	return Redact(kind, c.URL)
}

// Redact removes the password from an engine-native connection string.
func Redact(kind database.DriverKind, raw string) string {
	switch kind {
	case database.Postgres:
		if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
			if u.User != nil {
				u.User = url.User(u.User.Username())
			}
			return u.String()
		}
		return passwordParam.ReplaceAllString(raw, "${1}***")
	case database.MySQL:
		at := strings.LastIndex(raw, "@")
		if at < 0 {
			return raw
		}
		creds := raw[:at]
		if colon := strings.Index(creds, ":"); colon >= 0 {
			creds = creds[:colon]
		}
		return creds + "@" + raw[at+1:]
	default:
		return raw
	}
}

// NewConnection builds a profile for a connection string with an
// auto-generated name.
func NewConnection(kind database.DriverKind, raw string) Connection {
	return Connection{
		Name:   autoName(kind, raw),
		Driver: string(kind),
		URL:    raw,
	}
}

func autoName(kind database.DriverKind, raw string) string {
	switch kind {
	case database.Postgres:
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("postgres-%s-%s-%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
	case database.MySQL:
		if cfg, err := mysql.ParseDSN(raw); err == nil {
			host := cfg.Addr
			if h, _, ok := strings.Cut(host, ":"); ok {
				host = h
			}
			return fmt.Sprintf("mysql-%s-%s", host, cfg.DBName)
		}
	case database.SQLite, database.DuckDB:
		if raw == "" || raw == ":memory:" {
			return string(kind) + "-memory"
		}
		return fmt.Sprintf("%s-%s", kind, strings.TrimSuffix(filepath.Base(raw), filepath.Ext(raw)))
	}
	return string(kind)
}

// Validate checks that every profile is usable and names are unique.
func (cfg *Config) Validate() error {
	seen := make(map[string]bool, len(cfg.Connections))
	var errs []error
	for i, c := range cfg.Connections {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("connections[%d]: missing name", i))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("connections[%d]: duplicate name %q", i, c.Name))
		}
		seen[c.Name] = true
		if _, err := c.Kind(); err != nil {
			errs = append(errs, fmt.Errorf("connection %q: %w", c.Name, err))
		}
		if c.URL == "" && !c.Keyring {
			errs = append(errs, fmt.Errorf("connection %q: missing url", c.Name))
		}
	}
	return errors.Join(errs...)
}

// HasConnection checks if a connection with the given name already exists.
func (cfg *Config) HasConnection(name string) bool {
	_, ok := cfg.FindConnection(name)
	return ok
}

// FindConnection returns the profile with the given name.
func (cfg *Config) FindConnection(name string) (*Connection, bool) {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i], true
		}
	}
	return nil, false
}

// AddConnection appends a connection if it doesn't already exist.
func (cfg *Config) AddConnection(conn Connection) bool {
	if cfg.HasConnection(conn.Name) {
		return false
	}
	cfg.Connections = append(cfg.Connections, conn)
	return true
}

// RemoveConnection deletes the named profile and clears it as the default.
func (cfg *Config) RemoveConnection(name string) bool {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			cfg.Connections = append(cfg.Connections[:i], cfg.Connections[i+1:]...)
			if cfg.Preferences.DefaultConnection == name {
				cfg.Preferences.DefaultConnection = ""
			}
			return true
		}
	}
	return false
}

// DefaultConnection returns the default connection from config, or the first one.
func (cfg *Config) DefaultConnection() *Connection {
	if len(cfg.Connections) == 0 {
		return nil
	}
	if c, ok := cfg.FindConnection(cfg.Preferences.DefaultConnection); ok {
		return c
	}
	return &cfg.Connections[0]
}
