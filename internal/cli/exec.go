package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/joacominatel/sqlzen/internal/app"
	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// ExecOptions holds options for the exec command.
type ExecOptions struct {
	Driver      string
	URL         string
	Connections []string
	File        string
	Format      string
	Watch       bool
}

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec [sql]",
		Short: "Run SQL against one or more connections",
		Long: `Run a SQL script against a saved connection, several saved connections at
once, or an ad-hoc driver and URL.

The script is read from the arguments, from --file, or from stdin when stdin
is not a terminal. Statements run in order; after the first failure the
remaining statements of that connection are skipped.`,
		Example: `  # Query a saved connection
  sqlzen exec -c local "SELECT * FROM users LIMIT 10"

  # Same script against two databases at once
  sqlzen exec -c staging -c prod -f checks.sql

  # Ad-hoc SQLite file, JSON output
  sqlzen exec --driver sqlite --url ./app.db -o json "SELECT count(*) FROM t"

  # Re-run a script every time it is saved
  sqlzen exec -c local -f report.sql --watch

  # Pipe SQL from another command
  cat migration.sql | sqlzen exec -c local`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "driver for an ad-hoc connection (postgresql|mysql|sqlite|duckdb)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "connection string for an ad-hoc connection")
	cmd.Flags().StringArrayVarP(&opts.Connections, "connection", "c", nil, "saved connection name (repeatable)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read SQL from file")
	cmd.Flags().StringVarP(&opts.Format, "output", "o", "table", "output format (table|json|csv|markdown)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-run the file whenever it changes (requires --file)")

	cmd.MarkFlagsRequiredTogether("driver", "url")
	cmd.MarkFlagsMutuallyExclusive("url", "connection")

	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return Formats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return driverNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExec(cmd *cobra.Command, args []string, opts *ExecOptions) error {
	ctx := cmd.Context()
	env, err := GetEnv(ctx)
	if err != nil {
		return err
	}

	format, err := ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if opts.Watch && opts.File == "" {
		return errors.New("--watch requires --file")
	}

	targets, err := opts.targets(env)
	if err != nil {
		return err
	}

	script, err := readScript(cmd.InOrStdin(), args, opts.File)
	if err != nil {
		return err
	}

	sess := env.NewSession(ctx)
	defer func() { _ = sess.Close() }()

	renderer := NewRenderer(cmd.OutOrStdout(), format)
	connErrs := openTargets(ctx, sess, targets)

	runErr := renderRuns(renderer, cmd.OutOrStdout(), runTargets(ctx, sess, targets, connErrs, script))
	if !opts.Watch {
		return runErr
	}
	if runErr != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", runErr)
	}

	return watchFile(ctx, opts.File, env.Logger, func() {
		script, err := readScript(nil, nil, opts.File)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n-- %s changed, re-running at %s\n", opts.File, time.Now().Format(time.TimeOnly))
		if err := renderRuns(renderer, cmd.OutOrStdout(), runTargets(ctx, sess, targets, connErrs, script)); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
}

// targets resolves the connections to run against.
func (o *ExecOptions) targets(env *Env) ([]Target, error) {
	if o.URL != "" {
		kind, err := database.ParseDriverKind(o.Driver)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
		return []Target{{Key: key, Driver: kind, URL: o.URL}}, nil
	}

	if len(o.Connections) == 0 {
		t, err := env.Resolve("")
		if err != nil {
			return nil, err
		}
		return []Target{t}, nil
	}

	targets := make([]Target, 0, len(o.Connections))
	seen := make(map[string]bool, len(o.Connections))
	for _, name := range o.Connections {
		if seen[name] {
			continue
		}
		seen[name] = true
		t, err := env.Resolve(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// readScript takes SQL from file, args, or non-terminal stdin, in that order.
func readScript(stdin io.Reader, args []string, file string) (string, error) {
	var script string
	switch {
	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		script = string(content)
	case len(args) > 0:
		script = strings.Join(args, " ")
	case stdin != nil && !isTerminal(stdin):
		content, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		script = string(content)
	}

	if strings.TrimSpace(script) == "" {
		return "", errors.New("no SQL given: pass it as an argument, with --file, or on stdin")
	}
	return script, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// targetRun is the outcome of one script run against one target.
type targetRun struct {
	Key        string                `json:"key"`
	Driver     database.DriverKind   `json:"driver"`
	Statements []app.StatementResult `json:"statements"`
	Error      string                `json:"error,omitempty"`

	err error
}

// openTargets connects every target concurrently. The registry serializes
// the connects themselves; failures are per target.
func openTargets(ctx context.Context, sess *Session, targets []Target) []error {
	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			errs[i] = sess.Open(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// runTargets runs script against every connected target concurrently.
func runTargets(ctx context.Context, sess *Session, targets []Target, connErrs []error, script string) []targetRun {
	runs := make([]targetRun, len(targets))
	var g errgroup.Group
	g.SetLimit(8)
	for i, t := range targets {
		runs[i] = targetRun{Key: t.Key, Driver: t.Driver, Statements: []app.StatementResult{}}
		if connErrs[i] != nil {
			runs[i].err = connErrs[i]
			runs[i].Error = database.Message(connErrs[i])
			continue
		}
		g.Go(func() error {
			qctx, cancel := sess.QueryContext(ctx)
			defer cancel()

			results, err := sess.QueryScript(qctx, t.Key, script)
			runs[i].Statements = results
			runs[i].err = err
			runs[i].Error = database.Message(err)
			return nil
		})
	}
	_ = g.Wait()
	return runs
}

// renderRuns writes every run and returns the joined failures.
func renderRuns(r *Renderer, w io.Writer, runs []targetRun) error {
	var errs []error
	for _, run := range runs {
		if run.err != nil {
			errs = append(errs, run.err)
		}
	}

	if len(runs) == 1 {
		if run := runs[0]; len(run.Statements) > 0 {
			if err := r.Script(run.Statements); err != nil {
				return err
			}
		}
		return errors.Join(errs...)
	}

	if r.format == FormatJSON {
		if err := r.json(runs); err != nil {
			return err
		}
		return errors.Join(errs...)
	}

	for i, run := range runs {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "== %s (%s) ==\n", run.Key, run.Driver)
		if len(run.Statements) == 0 && run.err != nil {
			_, _ = fmt.Fprintf(w, "ERROR: %s\n", run.Error)
			continue
		}
		if err := r.Script(run.Statements); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// watchFile calls run after every write to path until ctx is done. The
// parent directory is watched so editors that save by rename are seen.
func watchFile(ctx context.Context, path string, logger *slog.Logger, run func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	logger.Debug("watching", slog.String("file", abs))

	var debounce *time.Timer
	trigger := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			run()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

func driverNames() []string {
	kinds := database.DriverKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}
