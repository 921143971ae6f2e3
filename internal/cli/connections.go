package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joacominatel/sqlzen/internal/app"
	"github.com/joacominatel/sqlzen/internal/config"
	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/spf13/cobra"
)

// NewConnectionsCommand creates the connections command and its subcommands.
func NewConnectionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage saved connections",
		Long: `Saved connections live in the config file. With --keyring the connection
string is stored in the OS keyring and only the name and driver are written
to the file.`,
	}

	cmd.AddCommand(newConnectionsListCommand())
	cmd.AddCommand(newConnectionsAddCommand())
	cmd.AddCommand(newConnectionsRemoveCommand())
	cmd.AddCommand(newConnectionsTestCommand())
	return cmd
}

func newConnectionsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved connections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := GetEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := env.Config
			if len(cfg.Connections) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No saved connections. Add one with: sqlzen connections add")
				return nil
			}

			def := cfg.DefaultConnection()
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			style := table.StyleLight
			style.Format.Header = text.FormatDefault
			t.SetStyle(style)
			t.AppendHeader(table.Row{"", "name", "driver", "url"})
			for _, c := range cfg.Connections {
				marker := ""
				if def != nil && def.Name == c.Name {
					marker = "*"
				}
				t.AppendRow(table.Row{marker, c.Name, c.Driver, c.DisplayString()})
			}
			t.Render()
			return nil
		},
	}
}

func newConnectionsAddCommand() *cobra.Command {
	var (
		driver     string
		url        string
		useKeyring bool
		makeDef    bool
		test       bool
	)

	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Save a connection",
		Long: `Save a connection profile. Without a name one is derived from the URL,
e.g. postgres-localhost-5432-app or sqlite-data.`,
		Example: `  sqlzen connections add local --driver postgresql --url postgres://app@localhost/app
  sqlzen connections add --driver sqlite --url ./data.db --default
  sqlzen connections add prod --driver mysql --url 'app:secret@tcp(db:3306)/app' --keyring --test`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := GetEnv(ctx)
			if err != nil {
				return err
			}

			kind, err := database.ParseDriverKind(driver)
			if err != nil {
				return err
			}
			conn := config.NewConnection(kind, url)
			if len(args) == 1 {
				conn.Name = args[0]
			}
			if env.Config.HasConnection(conn.Name) {
				return &app.ErrConfig{Cause: fmt.Errorf("connection %q already exists", conn.Name)}
			}

			if test {
				sess := env.NewSession(ctx)
				defer func() { _ = sess.Close() }()
				if err := sess.Open(ctx, Target{Key: conn.Name, Driver: kind, URL: url}); err != nil {
					return err
				}
			}

			if useKeyring {
				if err := config.StoreSecret(&conn); err != nil {
					return &app.ErrConfig{Cause: err}
				}
			}
			env.Config.AddConnection(conn)
			if makeDef {
				env.Config.Preferences.DefaultConnection = conn.Name
			}
			if err := config.Save(env.Viper, env.Config); err != nil {
				return &app.ErrConfig{Cause: err}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved connection %q (%s)\n", conn.Name, conn.DisplayString())
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "driver (postgresql|mysql|sqlite|duckdb)")
	cmd.Flags().StringVar(&url, "url", "", "engine-native connection string or file path")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "store the connection string in the OS keyring")
	cmd.Flags().BoolVar(&makeDef, "default", false, "make this the default connection")
	cmd.Flags().BoolVar(&test, "test", false, "connect once before saving")
	_ = cmd.MarkFlagRequired("driver")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return driverNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func newConnectionsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := GetEnv(cmd.Context())
			if err != nil {
				return err
			}

			name := args[0]
			conn, ok := env.Config.FindConnection(name)
			if !ok {
				return &app.ErrConfig{Cause: fmt.Errorf("unknown connection %q", name)}
			}
			if conn.Keyring {
				if err := config.DeleteSecret(name); err != nil {
					return &app.ErrConfig{Cause: err}
				}
			}
			env.Config.RemoveConnection(name)
			if err := config.Save(env.Viper, env.Config); err != nil {
				return &app.ErrConfig{Cause: err}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed connection %q\n", name)
			return nil
		},
	}
}

func newConnectionsTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test [name]",
		Short: "Connect to a saved connection and print the server version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := GetEnv(ctx)
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			t, err := env.Resolve(name)
			if err != nil {
				return err
			}

			sess := env.NewSession(ctx)
			defer func() { _ = sess.Close() }()
			if err := sess.Open(ctx, t); err != nil {
				return err
			}

			qctx, cancel := sess.QueryContext(ctx)
			defer cancel()
			version, err := sess.Ping(qctx, t.Key)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): ok\n%s\n", t.Key, t.Driver, version)
			return nil
		},
	}
}
