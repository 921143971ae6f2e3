package cli

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/sqlzen/internal/config"
	"github.com/joacominatel/sqlzen/internal/tui"
	"github.com/spf13/cobra"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := GetEnv(ctx)
	if err != nil {
		return err
	}
	initial, _ := cmd.Flags().GetString("connection")

	sess := env.NewSession(ctx)
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			env.Logger.Warn("closing session", slog.String("error", cerr.Error()))
		}
	}()

	prefs := env.Config.Preferences
	model := tui.NewModel(tui.Options{
		Registry:       sess.Service,
		Config:         env.Config,
		Logger:         env.Logger,
		Context:        ctx,
		ConnectTimeout: prefs.ConnectTimeout,
		QueryTimeout:   prefs.QueryTimeout,
		Save: func(cfg *config.Config) error {
			return config.Save(env.Viper, cfg)
		},
		Initial: initial,
	})

	env.Logger.Info("starting tui", slog.String("config", env.Viper.ConfigFileUsed()))
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}
