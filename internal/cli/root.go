// Package cli provides the command-line interface for sqlzen.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joacominatel/sqlzen/internal/app"
	"github.com/joacominatel/sqlzen/internal/config"
	"github.com/joacominatel/sqlzen/internal/tui/theme"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// envKey is used to store the Env in the command context.
type envKey struct{}

// NewRootCmd creates and returns the root command. Running it without a
// subcommand starts the TUI.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "sqlzen",
		Short: "sqlzen - one SQL client for PostgreSQL, MySQL, SQLite and DuckDB",
		Long: `sqlzen opens named connections to PostgreSQL, MySQL, SQLite and DuckDB and
runs SQL against any of them through one interface, with one result shape.

Run without arguments to start the terminal UI.`,
		Version: Version,
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			env, err := loadEnv(v, cfgFile, cmd == cmd.Root(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, env))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if env, ok := cmd.Context().Value(envKey{}).(*Env); ok {
				return env.Close()
			}
			return nil
		},
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ~/.sqlzen/config.yaml)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (text|json)")
	pf.String("log-file", "", "log file used by the TUI")
	pf.Duration("connect-timeout", 0, "deadline for opening a connection")
	pf.Duration("query-timeout", 0, "deadline for each query (0 for none)")

	_ = v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = v.BindPFlag("logging.file", pf.Lookup("log-file"))
	_ = v.BindPFlag("preferences.connect_timeout", pf.Lookup("connect-timeout"))
	_ = v.BindPFlag("preferences.query_timeout", pf.Lookup("query-timeout"))

	f := rootCmd.Flags()
	f.StringP("connection", "c", "", "saved connection to open on start")
	f.String("theme", "", "color theme ("+strings.Join(theme.Names(), "|")+")")
	_ = v.BindPFlag("preferences.theme", f.Lookup("theme"))

	_ = rootCmd.RegisterFlagCompletionFunc("connection", completeConnections(v, &cfgFile))
	_ = rootCmd.RegisterFlagCompletionFunc("theme", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return theme.Names(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(NewVersionCommand(Version))
	rootCmd.AddCommand(NewExecCommand())
	rootCmd.AddCommand(NewREPLCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewConnectionsCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func loadEnv(v *viper.Viper, cfgFile string, tui bool, stderr io.Writer) (*Env, error) {
	if err := config.Setup(v, cfgFile); err != nil {
		return nil, &app.ErrConfig{Cause: err}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, &app.ErrConfig{Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &app.ErrConfig{Cause: err}
	}

	env := &Env{Viper: v, Config: cfg}
	if tui {
		env.Logger, env.logFile, err = newFileLogger(cfg.Logging)
	} else {
		env.Logger, err = newLogger(cfg.Logging, stderr)
	}
	if err != nil {
		return nil, &app.ErrConfig{Cause: err}
	}
	return env, nil
}

// GetEnv retrieves the Env from the command context.
func GetEnv(ctx context.Context) (*Env, error) {
	if env, ok := ctx.Value(envKey{}).(*Env); ok {
		return env, nil
	}
	return nil, &app.ErrConfig{Cause: fmt.Errorf("configuration not loaded")}
}

// completeConnections suggests saved connection names.
func completeConnections(v *viper.Viper, cfgFile *string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		if err := config.Setup(v, *cfgFile); err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		cfg, err := config.Load(v)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		names := make([]string, 0, len(cfg.Connections))
		for _, c := range cfg.Connections {
			names = append(names, c.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
