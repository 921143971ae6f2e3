package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joacominatel/sqlzen/internal/config"
	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/spf13/cobra"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var (
		connections []string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive SQL shell",
		Long: `Start an interactive shell over a connection registry.

SQL accumulates across lines until a line ends with ';' and then runs
against the active connection. Lines starting with '.' are commands; type
.help for the list.`,
		Example: `  sqlzen repl -c local
  sqlzen repl -c staging -c prod`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := GetEnv(ctx)
			if err != nil {
				return err
			}
			f, err := ParseFormat(format)
			if err != nil {
				return err
			}

			sess := env.NewSession(ctx)
			defer func() { _ = sess.Close() }()

			r := newREPL(env, sess, cmd.OutOrStdout(), cmd.ErrOrStderr(), f)
			for _, name := range connections {
				r.open(ctx, name)
			}

			historyFile := ""
			if dir, err := config.Dir(); err == nil {
				historyFile = filepath.Join(dir, "repl_history")
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          r.prompt(),
				HistoryFile:     historyFile,
				AutoComplete:    r.completer(),
				InterruptPrompt: "^C",
				EOFPrompt:       ".quit",
				Stdout:          cmd.OutOrStdout(),
				Stderr:          cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("failed to initialize REPL: %w", err)
			}
			defer func() { _ = rl.Close() }()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlzen %s\n", Version)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
			return r.run(ctx, rl)
		},
	}

	cmd.Flags().StringArrayVarP(&connections, "connection", "c", nil, "saved connection to open (repeatable, the last one is active)")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format (table|json|csv|markdown)")
	return cmd
}

// lineReader is the part of *readline.Instance the loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type repl struct {
	env    *Env
	sess   *Session
	out    io.Writer
	errOut io.Writer
	render *Renderer

	active string
	buf    strings.Builder
}

func newREPL(env *Env, sess *Session, out, errOut io.Writer, format Format) *repl {
	return &repl{
		env:    env,
		sess:   sess,
		out:    out,
		errOut: errOut,
		render: NewRenderer(out, format),
	}
}

func (r *repl) prompt() string {
	if r.active == "" {
		return "sqlzen> "
	}
	return "sqlzen(" + r.active + ")> "
}

func (r *repl) run(ctx context.Context, rl lineReader) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			r.buf.Reset()
			rl.SetPrompt(r.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if r.handle(ctx, line) {
			return nil
		}
		if r.buf.Len() > 0 {
			rl.SetPrompt(strings.Repeat(" ", len(r.prompt())-5) + "...> ")
		} else {
			rl.SetPrompt(r.prompt())
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle processes one input line and reports whether to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	if r.buf.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		return r.dot(ctx, trimmed)
	}

	if r.buf.Len() > 0 {
		r.buf.WriteString("\n")
	}
	r.buf.WriteString(line)
	if !strings.HasSuffix(trimmed, ";") {
		return false
	}

	script := r.buf.String()
	r.buf.Reset()
	r.execute(ctx, script)
	return false
}

func (r *repl) execute(ctx context.Context, script string) {
	if r.active == "" {
		r.errorf("no active connection: use .open <name> or .connect <driver> <url>")
		return
	}

	qctx, cancel := r.sess.QueryContext(ctx)
	defer cancel()

	results, err := r.sess.QueryScript(qctx, r.active, script)
	if len(results) > 0 {
		if rerr := r.render.Script(results); rerr != nil {
			r.errorf("%v", rerr)
		}
	}
	if err != nil && len(results) == 0 {
		r.errorf("%s", database.Message(err))
	}
	_, _ = fmt.Fprintln(r.out)
}

func (r *repl) dot(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		r.help()

	case ".open":
		if len(parts) != 2 {
			r.errorf("usage: .open <saved-connection>")
			break
		}
		r.open(ctx, parts[1])

	case ".connect":
		if len(parts) < 3 || len(parts) > 4 {
			r.errorf("usage: .connect <driver> <url> [key]")
			break
		}
		kind, err := database.ParseDriverKind(parts[1])
		if err != nil {
			r.errorf("%v", err)
			break
		}
		key := config.NewConnection(kind, parts[2]).Name
		if len(parts) == 4 {
			key = parts[3]
		}
		r.connect(ctx, Target{Key: key, Driver: kind, URL: parts[2]})

	case ".use":
		if len(parts) != 2 {
			r.errorf("usage: .use <key>")
			break
		}
		if _, ok := r.sess.Driver(parts[1]); !ok {
			r.errorf("%s", (&database.NotFoundError{Key: parts[1]}).Error())
			break
		}
		r.active = parts[1]

	case ".connections":
		r.listConnections()

	case ".ping":
		if r.active == "" {
			r.errorf("no active connection")
			break
		}
		version, err := r.sess.Ping(ctx, r.active)
		if err != nil {
			r.errorf("%s", database.Message(err))
			break
		}
		_, _ = fmt.Fprintln(r.out, version)

	case ".format":
		if len(parts) != 2 {
			_, _ = fmt.Fprintf(r.out, "format: %s\n", r.render.format)
			break
		}
		f, err := ParseFormat(parts[1])
		if err != nil {
			r.errorf("%v", err)
			break
		}
		r.render = NewRenderer(r.out, f)

	case ".history":
		r.history(ctx, parts[1:])

	default:
		r.errorf("unknown command: %s (type .help for commands)", parts[0])
	}
	return false
}

func (r *repl) open(ctx context.Context, name string) {
	t, err := r.env.Resolve(name)
	if err != nil {
		r.errorf("%v", err)
		return
	}
	r.connect(ctx, t)
}

func (r *repl) connect(ctx context.Context, t Target) {
	if err := r.sess.Open(ctx, t); err != nil {
		r.errorf("%s", database.Message(err))
		return
	}
	r.active = t.Key
	_, _ = fmt.Fprintf(r.out, "connected %s (%s)\n", t.Key, t.Driver)
}

func (r *repl) listConnections() {
	conns := r.sess.Connections()
	if len(conns) == 0 {
		_, _ = fmt.Fprintln(r.out, "(no connections)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)
	t.AppendHeader(table.Row{"", "key", "driver", "connected"})
	for _, c := range conns {
		marker := ""
		if c.Key == r.active {
			marker = "*"
		}
		t.AppendRow(table.Row{marker, c.Key, c.Driver, c.ConnectedAt.Format("15:04:05")})
	}
	t.Render()
}

func (r *repl) history(ctx context.Context, args []string) {
	if r.sess.History == nil {
		r.errorf("history is disabled")
		return
	}
	limit := 20
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			r.errorf("usage: .history [n]")
			return
		}
		limit = n
	}
	entries, err := r.sess.History.Recent(ctx, r.active, limit)
	if err != nil {
		r.errorf("%v", err)
		return
	}
	if err := renderHistory(r.render, entries); err != nil {
		r.errorf("%v", err)
	}
}

func (r *repl) help() {
	_, _ = fmt.Fprintln(r.out, `Commands:
  .open <name>                 connect a saved connection
  .connect <driver> <url> [k]  connect under key k
  .use <key>                   switch the active connection
  .connections                 list open connections
  .ping                        show the server version
  .format [fmt]                show or set output (table|json|csv|markdown)
  .history [n]                 recent statements on the active connection
  .help                        show this help
  .quit                        exit

SQL runs when a line ends with ';'. Ctrl+C discards the pending input.`)
}

func (r *repl) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errOut, "Error: "+format+"\n", args...)
}

func (r *repl) completer() *readline.PrefixCompleter {
	keys := func(string) []string {
		conns := r.sess.Connections()
		out := make([]string, len(conns))
		for i, c := range conns {
			out[i] = c.Key
		}
		return out
	}
	saved := func(string) []string {
		out := make([]string, len(r.env.Config.Connections))
		for i, c := range r.env.Config.Connections {
			out[i] = c.Name
		}
		return out
	}
	drivers := make([]readline.PrefixCompleterInterface, 0, len(database.DriverKinds()))
	for _, name := range driverNames() {
		drivers = append(drivers, readline.PcItem(name))
	}
	formats := make([]readline.PrefixCompleterInterface, 0, len(Formats))
	for _, f := range Formats {
		formats = append(formats, readline.PcItem(f))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".open", readline.PcItemDynamic(saved)),
		readline.PcItem(".connect", drivers...),
		readline.PcItem(".use", readline.PcItemDynamic(keys)),
		readline.PcItem(".connections"),
		readline.PcItem(".ping"),
		readline.PcItem(".format", formats...),
		readline.PcItem(".history"),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
	)
}
