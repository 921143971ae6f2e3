package results

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlzen/internal/app"
	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/joacominatel/sqlzen/internal/tui/theme"
)

const maxColWidth = 40

// Model is the query results component.
type Model struct {
	result    *database.QueryResult
	err       error
	width     int
	height    int
	focused   bool
	loading   bool
	colWidths []int

	// Cell cursor and viewport
	cursorX   int
	cursorY   int
	scrollY   int
	colOffset int

	lastQuery     string
	took          time.Duration
	summary       string
	statusMessage string
	exportDir     string
}

// New creates a new results model.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.clampScroll()
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Focused returns whether the results pane has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetExportDir sets where exports are written. Empty means the working directory.
func (m *Model) SetExportDir(dir string) {
	m.exportDir = dir
}

// SetResult shows the result of query, which took the given time.
func (m *Model) SetResult(r *database.QueryResult, query string, took time.Duration) {
	m.result = r
	m.err = nil
	m.lastQuery = query
	m.took = took
	m.summary = ""
	m.loading = false
	m.resetCursor()
	m.calculateColumnWidths()
}

// SetScript shows a script run: a summary line, the first failure, and the
// grid of the last statement that returned columns.
func (m *Model) SetScript(results []app.StatementResult) {
	m.loading = false
	m.err = nil
	m.result = nil
	m.lastQuery = ""
	m.took = 0

	var ok, failed, cancelled int
	for _, r := range results {
		m.took += r.Duration
		switch r.State {
		case app.StateSuccess:
			ok++
			if r.Result != nil && (len(r.Result.Columns) > 0 || m.result == nil) {
				m.result = r.Result
				m.lastQuery = r.Statement.SQL
			}
		case app.StateError:
			failed++
			if m.err == nil {
				m.err = fmt.Errorf("line %d: %s", r.Statement.Line, database.Message(r.Err))
			}
		case app.StateCancelled:
			cancelled++
		}
	}

	m.summary = fmt.Sprintf("%d statement(s): %d ok", len(results), ok)
	if failed > 0 {
		m.summary += fmt.Sprintf(", %d failed", failed)
	}
	if cancelled > 0 {
		m.summary += fmt.Sprintf(", %d cancelled", cancelled)
	}
	m.resetCursor()
	m.calculateColumnWidths()
}

// SetError sets an error to display.
func (m *Model) SetError(err error) {
	m.err = err
	m.result = nil
	m.summary = ""
	m.loading = false
	m.resetCursor()
	m.colWidths = nil
}

// Result returns the displayed result, if any.
func (m Model) Result() *database.QueryResult {
	return m.result
}

// Cursor returns the selected row and column.
func (m Model) Cursor() (row, col int) {
	return m.cursorY, m.cursorX
}

func (m *Model) resetCursor() {
	m.cursorX, m.cursorY = 0, 0
	m.scrollY, m.colOffset = 0, 0
	m.statusMessage = ""
}

func (m *Model) calculateColumnWidths() {
	if m.result == nil || len(m.result.Columns) == 0 {
		m.colWidths = nil
		return
	}

	m.colWidths = make([]int, len(m.result.Columns))

	// Use display width (not byte length) for accurate measurement
	for i, col := range m.result.Columns {
		m.colWidths[i] = lipgloss.Width(col.Name)
	}

	for _, row := range m.result.Rows {
		for i, cell := range row {
			w := lipgloss.Width(cell.String())
			if i < len(m.colWidths) && w > m.colWidths[i] {
				m.colWidths[i] = w
			}
		}
	}

	// Enforce minimum of 1 and cap at maxColWidth
	for i := range m.colWidths {
		if m.colWidths[i] < 1 {
			m.colWidths[i] = 1
		}
		if m.colWidths[i] > maxColWidth {
			m.colWidths[i] = maxColWidth
		}
	}
}

func (m Model) rowCount() int {
	if m.result == nil {
		return 0
	}
	return len(m.result.Rows)
}

func (m Model) visibleRows() int {
	n := m.height - 4
	if m.summary != "" {
		n--
	}
	if m.err != nil {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

// visibleCols returns the column range [from, to) that fits the width.
func (m Model) visibleCols() (from, to int) {
	from = m.colOffset
	avail := m.width - 4
	used := 0
	to = from
	for to < len(m.colWidths) {
		w := m.colWidths[to]
		if to > from {
			w += 3 // " │ "
		}
		if used+w > avail && to > from {
			break
		}
		used += w
		to++
	}
	return from, to
}

func (m *Model) clampScroll() {
	if m.cursorY < m.scrollY {
		m.scrollY = m.cursorY
	}
	if vis := m.visibleRows(); m.cursorY >= m.scrollY+vis {
		m.scrollY = m.cursorY - vis + 1
	}
	if m.cursorX < m.colOffset {
		m.colOffset = m.cursorX
	}
	for m.colOffset < m.cursorX {
		if _, to := m.visibleCols(); m.cursorX < to {
			break
		}
		m.colOffset++
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	rows := m.rowCount()
	cols := len(m.colWidths)

	switch keyMsg.String() {
	case "up", "k":
		if m.cursorY > 0 {
			m.cursorY--
		}
	case "down", "j":
		if m.cursorY < rows-1 {
			m.cursorY++
		}
	case "left", "h":
		if m.cursorX > 0 {
			m.cursorX--
		}
	case "right", "l":
		if m.cursorX < cols-1 {
			m.cursorX++
		}
	case "pgup":
		m.cursorY -= m.visibleRows()
		if m.cursorY < 0 {
			m.cursorY = 0
		}
	case "pgdown":
		m.cursorY += m.visibleRows()
		if m.cursorY > rows-1 {
			m.cursorY = max(rows-1, 0)
		}
	case "home", "g":
		m.cursorY = 0
	case "end", "G":
		m.cursorY = max(rows-1, 0)

	case "c":
		m.doCopyCell()
		return m, m.notify()
	case "y":
		m.doCopyRowJSON()
		return m, m.notify()
	case "Y":
		m.doCopyRowCSV()
		return m, m.notify()
	case "t":
		m.doCopyRowText()
		return m, m.notify()
	case "f":
		return m, m.doFilterByValue()
	case "D":
		return m, m.doGenerateDelete()
	case "e":
		return m, m.exportCSVCmd()
	case "E":
		return m, m.exportJSONCmd()
	}

	m.clampScroll()
	return m, nil
}

func (m Model) notify() tea.Cmd {
	status := m.statusMessage
	if status == "" {
		return nil
	}
	return func() tea.Msg {
		return StatusNotifyMsg{Message: status}
	}
}

// View renders the results pane.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)

	if m.loading {
		return titleStyle.Render("Results") + "\n" + theme.StyleMuted.Render("  Executing query...")
	}

	var b strings.Builder
	if m.summary != "" {
		b.WriteString(titleStyle.Render("Results") + "  " + theme.StyleMuted.Render(m.summary+" | "+m.took.Round(time.Microsecond).String()))
		b.WriteString("\n")
	}

	if m.err != nil {
		if m.summary == "" {
			b.WriteString(titleStyle.Render("Results"))
			b.WriteString("\n")
		}
		b.WriteString(theme.StyleError.Render("  Error: " + m.err.Error()))
		if m.result == nil {
			return b.String()
		}
		b.WriteString("\n")
	}

	if m.result == nil {
		return titleStyle.Render("Results") + "\n" +
			theme.StyleMuted.Render("  Execute a query to see results")
	}

	if m.summary == "" {
		stats := fmt.Sprintf("%d row(s) | %s", len(m.result.Rows), m.took.Round(time.Microsecond).String())
		b.WriteString(titleStyle.Render("Results") + "  " + theme.StyleMuted.Render(stats))
		b.WriteString("\n")
	}

	if len(m.result.Columns) == 0 {
		b.WriteString(theme.StyleSuccess.Render("  Query executed successfully"))
		return b.String()
	}

	from, to := m.visibleCols()

	headers := make([]string, len(m.result.Columns))
	for i, col := range m.result.Columns {
		headers[i] = col.Name
	}
	b.WriteString(m.renderRow(headers[from:to], from, -1))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator(from, to))

	visible := m.visibleRows()
	for i := m.scrollY; i < len(m.result.Rows) && i < m.scrollY+visible; i++ {
		row := m.result.Rows[i]
		cells := make([]string, 0, to-from)
		for j := from; j < to && j < len(row); j++ {
			cells = append(cells, row[j].String())
		}
		b.WriteString("\n")
		b.WriteString(m.renderRow(cells, from, i))
	}

	if m.statusMessage != "" {
		b.WriteString("\n")
		b.WriteString(theme.StyleMuted.Render("  " + m.statusMessage))
	}

	return b.String()
}

// renderRow renders cells starting at column from. row is the row index,
// or -1 for the header.
func (m Model) renderRow(cells []string, from, row int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		col := from + i
		width := 10
		if col < len(m.colWidths) {
			width = m.colWidths[col]
		}

		display := truncate(cell, width)
		if pad := width - lipgloss.Width(display); pad > 0 {
			display += strings.Repeat(" ", pad)
		}

		switch {
		case row < 0:
			parts[i] = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorPrimary).
				Render(display)
		case m.focused && row == m.cursorY && col == m.cursorX:
			parts[i] = lipgloss.NewStyle().
				Reverse(true).
				Foreground(theme.ColorHighlight).
				Render(display)
		case row == m.cursorY:
			parts[i] = lipgloss.NewStyle().Foreground(theme.ColorHighlight).Render(display)
		default:
			parts[i] = display
		}
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator(from, to int) string {
	parts := make([]string, 0, to-from)
	for _, w := range m.colWidths[from:to] {
		parts = append(parts, strings.Repeat("─", max(w, 1)))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

// truncate shortens s to width display cells, ending with an ellipsis.
func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", "↵")
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
