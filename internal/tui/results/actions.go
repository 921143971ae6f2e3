package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/sqlzen/internal/database"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

func (m Model) cellAt(row, col int) (database.CellValue, bool) {
	if m.result == nil || row < 0 || row >= len(m.result.Rows) {
		return database.CellValue{}, false
	}
	r := m.result.Rows[row]
	if col < 0 || col >= len(r) {
		return database.CellValue{}, false
	}
	return r[col], true
}

func (m Model) getColumnName() string {
	if m.result == nil || m.cursorX < 0 || m.cursorX >= len(m.result.Columns) {
		return ""
	}
	return m.result.Columns[m.cursorX].Name
}

func (m Model) hasRow() bool {
	return m.result != nil && m.cursorY >= 0 && m.cursorY < len(m.result.Rows)
}

func (m *Model) toClipboard(val, done string) {
	if err := writeClipboard(val); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = done
}

// --- Copy ---

func (m *Model) doCopyCell() {
	cell, ok := m.cellAt(m.cursorY, m.cursorX)
	if !ok {
		m.statusMessage = "Nothing to copy"
		return
	}
	val := cell.String()
	m.toClipboard(val, "Copied: "+truncateStatus(val, 40))
}

func (m *Model) doCopyRowJSON() {
	if !m.hasRow() {
		m.statusMessage = "No row to copy"
		return
	}
	m.toClipboard(rowToJSON(m.result.ColumnNames(), m.result.Rows[m.cursorY]), "Copied row as JSON")
}

func (m *Model) doCopyRowCSV() {
	if !m.hasRow() {
		m.statusMessage = "No row to copy"
		return
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(m.result.ColumnNames())
	_ = w.Write(csvRecord(m.result.Rows[m.cursorY]))
	w.Flush()
	m.toClipboard(b.String(), "Copied row as CSV")
}

func (m *Model) doCopyRowText() {
	if !m.hasRow() {
		m.statusMessage = "No row to copy"
		return
	}
	row := m.result.Rows[m.cursorY]
	cells := make([]string, len(row))
	for i, c := range row {
		cells[i] = c.String()
	}
	m.toClipboard(strings.Join(cells, "\t"), "Copied row as text")
}

// --- Filter ---

func (m *Model) doFilterByValue() tea.Cmd {
	col := m.getColumnName()
	cell, ok := m.cellAt(m.cursorY, m.cursorX)
	if col == "" || !ok {
		m.statusMessage = "Cannot filter: no cell selected"
		return nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s", extractTableName(m.lastQuery), condition(col, cell))

	return func() tea.Msg {
		return SetEditorQueryMsg{Query: query}
	}
}

// --- Delete ---

func (m *Model) doGenerateDelete() tea.Cmd {
	if !m.hasRow() {
		return nil
	}
	row := m.result.Rows[m.cursorY]

	var conditions []string
	for i, col := range m.result.Columns {
		if i >= len(row) {
			break
		}
		conditions = append(conditions, condition(col.Name, row[i]))
	}

	// send to editor for review, never auto-execute deletes
	query := fmt.Sprintf("-- review before executing!\nDELETE FROM %s WHERE %s",
		extractTableName(m.lastQuery), strings.Join(conditions, " AND "))

	return func() tea.Msg {
		return SetEditorQueryMsg{Query: query}
	}
}

// --- Export ---

func (m Model) exportPath(ext string) string {
	ts := time.Now().Format("20060102_150405")
	return filepath.Join(m.exportDir, fmt.Sprintf("sqlzen_export_%s.%s", ts, ext))
}

func (m Model) exportJSONCmd() tea.Cmd {
	result := m.result
	if result == nil {
		return nil
	}
	filename := m.exportPath("json")
	return func() tea.Msg {
		columns := result.ColumnNames()

		var b strings.Builder
		b.WriteString("[\n")
		for ri, row := range result.Rows {
			if ri > 0 {
				b.WriteString(",\n")
			}
			b.WriteString("  ")
			b.WriteString(rowToJSON(columns, row))
		}
		b.WriteString("\n]\n")

		if err := os.WriteFile(filename, []byte(b.String()), 0o644); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(result.Rows), filename)}
	}
}

func (m Model) exportCSVCmd() tea.Cmd {
	result := m.result
	if result == nil {
		return nil
	}
	filename := m.exportPath("csv")
	return func() tea.Msg {
		f, err := os.Create(filename)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		defer f.Close()

		w := csv.NewWriter(f)
		_ = w.Write(result.ColumnNames())
		for _, row := range result.Rows {
			_ = w.Write(csvRecord(row))
		}
		w.Flush()

		if err := w.Error(); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(result.Rows), filename)}
	}
}

// --- Helpers ---

func extractTableName(query string) string {
	if query == "" {
		return "<table>"
	}
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		switch strings.ToUpper(tok) {
		case "FROM", "INTO", "UPDATE":
			if i+1 < len(tokens) {
				if name := strings.TrimRight(tokens[i+1], ";,()"); name != "" {
					return name
				}
			}
		}
	}
	return "<table>"
}

// condition renders col = <literal>, or IS NULL for a null cell.
func condition(col string, cell database.CellValue) string {
	if cell.IsNull() {
		return col + " IS NULL"
	}
	return col + " = " + literal(cell)
}

// literal renders cell as a SQL literal. Numbers stay unquoted and blobs
// use the x'..' hex form.
func literal(cell database.CellValue) string {
	switch cell.Kind() {
	case database.CellInt64, database.CellFloat64, database.CellBlob:
		return cell.String()
	case database.CellNull:
		return "NULL"
	default:
		s, _ := cell.AsText()
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}

// csvRecord renders a row for CSV. NULL becomes an empty field.
func csvRecord(row []database.CellValue) []string {
	out := make([]string, len(row))
	for i, c := range row {
		if !c.IsNull() {
			out[i] = c.String()
		}
	}
	return out
}

// rowToJSON preserves column order unlike map marshaling
func rowToJSON(columns []string, row []database.CellValue) string {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		key, _ := json.Marshal(col)
		b.Write(key)
		b.WriteString(": ")
		if i < len(row) {
			val, _ := json.Marshal(row[i])
			b.Write(val)
		} else {
			b.WriteString("null")
		}
	}
	b.WriteString("}")
	return b.String()
}

func truncateStatus(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
