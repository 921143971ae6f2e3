package app

import (
	"context"
	"log/slog"

	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/joacominatel/sqlzen/internal/database/duckdb"
	"github.com/joacominatel/sqlzen/internal/database/mysql"
	"github.com/joacominatel/sqlzen/internal/database/postgres"
	"github.com/joacominatel/sqlzen/internal/database/sqlite"
)

// Connector opens a client for a driver and an engine-native connection
// string. The string is passed through unchanged.
type Connector func(ctx context.Context, driver database.DriverKind, url string, logger *slog.Logger) (database.Client, error)

// Connect is the default Connector, dispatching to the built-in adapters.
func Connect(ctx context.Context, driver database.DriverKind, url string, logger *slog.Logger) (database.Client, error) {
	switch driver {
	case database.Postgres:
		c, err := postgres.Connect(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case database.MySQL:
		c, err := mysql.Connect(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case database.SQLite:
		c, err := sqlite.Connect(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case database.DuckDB:
		c, err := duckdb.Connect(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &database.UnknownDriverError{Driver: string(driver)}
	}
}
