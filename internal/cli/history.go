package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joacominatel/sqlzen/internal/history"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		key    string
		limit  int
		wipe   bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed statements",
		Long: `List statements recorded by previous runs, newest first.

History is kept in a SQLite database at history.path and can be disabled
with history.enabled: false.`,
		Example: `  sqlzen history
  sqlzen history -c local -n 20
  sqlzen history --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := GetEnv(ctx)
			if err != nil {
				return err
			}
			if !env.Config.History.Enabled {
				return errors.New("history is disabled (history.enabled: false)")
			}

			store, err := history.Open(ctx, env.Config.History.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if wipe {
				n, err := store.Clear(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
				return nil
			}

			f, err := ParseFormat(format)
			if err != nil {
				return err
			}
			entries, err := store.Recent(ctx, key, limit)
			if err != nil {
				return err
			}
			return renderHistory(NewRenderer(cmd.OutOrStdout(), f), entries)
		},
	}

	cmd.Flags().StringVarP(&key, "connection", "c", "", "only entries for this connection key")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of entries")
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete all history")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format (table|json|csv|markdown)")

	return cmd
}

type historyJSON struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Driver     string    `json:"driver"`
	SQL        string    `json:"sql"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	Rows       int       `json:"rows"`
	Error      string    `json:"error,omitempty"`
}

func renderHistory(r *Renderer, entries []history.Entry) error {
	if r.format == FormatJSON {
		out := make([]historyJSON, len(entries))
		for i, e := range entries {
			out[i] = historyJSON{
				ID:         e.ID,
				Key:        e.Key,
				Driver:     e.Driver,
				SQL:        e.SQL,
				StartedAt:  e.StartedAt,
				DurationMS: e.Duration.Milliseconds(),
				Rows:       e.Rows,
				Error:      e.Error,
			}
		}
		return r.json(out)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(r.w, "(no history)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)
	t.AppendHeader(table.Row{"started", "connection", "driver", "duration", "result", "sql"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, WidthMax: 60},
	})

	for _, e := range entries {
		result := fmt.Sprintf("%d rows", e.Rows)
		if e.Failed() {
			result = "error: " + e.Error
		}
		t.AppendRow(table.Row{
			e.StartedAt.Local().Format(time.DateTime),
			e.Key,
			e.Driver,
			e.Duration.Round(time.Microsecond).String(),
			result,
			firstLine(e.SQL),
		})
	}

	switch r.format {
	case FormatCSV:
		t.RenderCSV()
	case FormatMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
	return nil
}
