package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joacominatel/sqlzen/internal/app"
	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Format selects how results are written.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted output formats.
var Formats = []string{"table", "json", "csv", "markdown"}

// ParseFormat accepts a format name or the "md" alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (want one of %s)", s, strings.Join(Formats, ", "))
}

// Renderer writes query results in one format.
type Renderer struct {
	w      io.Writer
	format Format
	color  bool
}

// NewRenderer creates a renderer. Table headers are colored only when w is
// a terminal that supports color.
func NewRenderer(w io.Writer, format Format) *Renderer {
	return &Renderer{w: w, format: format, color: supportsColor(w)}
}

func supportsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	return termenv.NewOutput(f).ColorProfile() != termenv.Ascii
}

// Result writes one query result.
func (r *Renderer) Result(res *database.QueryResult) error {
	switch r.format {
	case FormatJSON:
		return r.json(res)
	case FormatCSV:
		if len(res.Columns) == 0 {
			return nil
		}
		r.table(res).RenderCSV()
		return nil
	case FormatMarkdown:
		if len(res.Columns) == 0 {
			_, err := fmt.Fprintln(r.w, "OK")
			return err
		}
		r.table(res).RenderMarkdown()
		return nil
	default:
		if len(res.Columns) == 0 {
			_, err := fmt.Fprintln(r.w, "OK")
			return err
		}
		r.table(res).Render()
		_, err := fmt.Fprintf(r.w, "(%d rows)\n", len(res.Rows))
		return err
	}
}

// Script writes every statement outcome of a script run. In JSON the whole
// run is one array; otherwise each statement gets a header when there is
// more than one.
func (r *Renderer) Script(results []app.StatementResult) error {
	if r.format == FormatJSON {
		return r.json(results)
	}

	for i, res := range results {
		if len(results) > 1 && r.format != FormatCSV {
			if i > 0 {
				_, _ = fmt.Fprintln(r.w)
			}
			_, _ = fmt.Fprintf(r.w, "-- [%d:%d] %s\n", res.Statement.Line, res.Statement.Column, firstLine(res.Statement.SQL))
		}
		switch res.State {
		case app.StateSuccess:
			if err := r.Result(res.Result); err != nil {
				return err
			}
		case app.StateError:
			_, _ = fmt.Fprintf(r.w, "ERROR: %s\n", database.Message(res.Err))
		case app.StateCancelled:
			if r.format != FormatCSV {
				_, _ = fmt.Fprintln(r.w, "(cancelled)")
			}
		}
	}
	return nil
}

func (r *Renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) table(res *database.QueryResult) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	if r.color {
		style.Color.Header = text.Colors{text.Bold, text.FgHiCyan}
	}
	t.SetStyle(style)

	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col.Name
	}
	t.AppendHeader(header)

	for _, row := range res.Rows {
		cells := make(table.Row, len(row))
		for i, c := range row {
			cells[i] = c.String()
		}
		t.AppendRow(cells)
	}
	return t
}

func firstLine(sql string) string {
	line, _, cut := strings.Cut(sql, "\n")
	if cut {
		return line + " ..."
	}
	return line
}
