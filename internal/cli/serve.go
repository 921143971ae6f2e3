package cli

import (
	"log/slog"

	"github.com/joacominatel/sqlzen/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var preconnect []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the connection registry over HTTP",
		Long: `Expose connect and query as a JSON HTTP API.

Endpoints:
  POST /connect              {"key", "driver", "url"}
  POST /query                {"key", "sql"}  -> {"columns", "rows"}
  POST /script               {"key", "sql"}  -> one entry per statement
  GET  /connections          live registry keys
  GET  /connections/{key}/ping`,
		Example: `  sqlzen serve --addr 127.0.0.1:7420
  sqlzen serve -c local -c analytics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := GetEnv(ctx)
			if err != nil {
				return err
			}

			sess := env.NewSession(ctx)
			defer func() { _ = sess.Close() }()

			for _, name := range preconnect {
				t, err := env.Resolve(name)
				if err != nil {
					return err
				}
				if err := sess.Open(ctx, t); err != nil {
					return err
				}
				env.Logger.Info("connected", slog.String("key", t.Key), slog.String("driver", string(t.Driver)))
			}

			srv := server.New(server.Config{
				Registry:     sess.Service,
				Addr:         env.Viper.GetString("server.addr"),
				Logger:       env.Logger,
				QueryTimeout: env.Config.Preferences.QueryTimeout,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from server.addr)")
	cmd.Flags().StringArrayVarP(&preconnect, "connection", "c", nil, "saved connection to open at startup (repeatable)")

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		env, err := GetEnv(cmd.Context())
		if err != nil {
			return err
		}
		return env.Viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	}

	return cmd
}
