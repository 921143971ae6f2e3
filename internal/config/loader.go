package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configDir  = ".sqlzen"
	configFile = "config"
	configType = "yaml"

	// EnvPrefix prefixes environment overrides, e.g. SQLZEN_LOGGING_LEVEL.
	EnvPrefix = "SQLZEN"
)

// Dir returns ~/.sqlzen.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

// Setup points v at cfgFile, or ~/.sqlzen/config.yaml when empty, and
// registers defaults and environment overrides.
func Setup(v *viper.Viper, cfgFile string) error {
	dir, err := Dir()
	if err != nil {
		return fmt.Errorf("config dir: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configFile)
		v.SetConfigType(configType)
		v.AddConfigPath(dir)
	}

	v.SetDefault("preferences.theme", "default")
	v.SetDefault("preferences.default_connection", "")
	v.SetDefault("preferences.connect_timeout", "10s")
	v.SetDefault("preferences.query_timeout", "0s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", filepath.Join(dir, "sqlzen.log"))
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(dir, "history.db"))
	v.SetDefault("server.addr", "127.0.0.1:7420")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return nil
}

// Load reads the configuration through v. A missing file yields the defaults.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to the file v was set up with.
func Save(v *viper.Viper, cfg *Config) error {
	path := v.ConfigFileUsed()
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return fmt.Errorf("config dir: %w", err)
		}
		path = filepath.Join(dir, configFile+"."+configType)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	connections := make([]map[string]any, len(cfg.Connections))
	for i, c := range cfg.Connections {
		m := map[string]any{"name": c.Name, "driver": c.Driver}
		if c.Keyring {
			m["keyring"] = true
		} else {
			m["url"] = c.URL
		}
		connections[i] = m
	}

	v.Set("connections", connections)
	v.Set("preferences", map[string]any{
		"theme":              cfg.Preferences.Theme,
		"default_connection": cfg.Preferences.DefaultConnection,
		"connect_timeout":    cfg.Preferences.ConnectTimeout.String(),
		"query_timeout":      cfg.Preferences.QueryTimeout.String(),
	})
	v.Set("logging", map[string]any{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
		"file":   cfg.Logging.File,
	})
	v.Set("history", map[string]any{
		"enabled": cfg.History.Enabled,
		"path":    cfg.History.Path,
	})
	v.Set("server", map[string]any{
		"addr": cfg.Server.Addr,
	})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
