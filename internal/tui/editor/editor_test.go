package editor

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFocused(t *testing.T, query string) Model {
	t.Helper()
	m := New()
	m.SetSize(80, 10)
	m.SetFocused(true)
	m.SetQuery(query)
	return m
}

func press(t *testing.T, m Model, k tea.KeyType) Model {
	t.Helper()
	m, _ = m.Update(tea.KeyMsg{Type: k})
	return m
}

// execute presses k and returns the message its command produces.
func execute(t *testing.T, m Model, k tea.KeyType) tea.Msg {
	t.Helper()
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestCursorOffset(t *testing.T) {
	tests := []struct {
		name  string
		value string
		row   int
		col   int
		want  int
	}{
		{"start", "SELECT 1", 0, 0, 0},
		{"first line", "SELECT 1;\nSELECT 2", 0, 7, 7},
		{"second line", "SELECT 1;\nSELECT 2", 1, 3, 13},
		{"column past end", "ab\ncd", 0, 9, 2},
		{"multibyte runes", "é;\nx", 0, 1, 2},
		{"row past end", "ab", 4, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cursorOffset(tt.value, tt.row, tt.col))
		})
	}
}

func TestExecuteStatementAtCursor(t *testing.T) {
	m := newFocused(t, "SELECT 1;\n\nSELECT 2;")

	msg := execute(t, m, tea.KeyCtrlE)
	require.IsType(t, ExecuteQueryMsg{}, msg)
	exec := msg.(ExecuteQueryMsg)
	assert.Equal(t, "SELECT 2", exec.Query)
	assert.Equal(t, 3, exec.Line)
	assert.False(t, exec.Script)
}

func TestExecuteScript(t *testing.T) {
	script := "CREATE TABLE t (x INT);\nSELECT * FROM t;"
	m := newFocused(t, script)

	msg := execute(t, m, tea.KeyCtrlR)
	require.IsType(t, ExecuteQueryMsg{}, msg)
	exec := msg.(ExecuteQueryMsg)
	assert.Equal(t, script, exec.Query)
	assert.True(t, exec.Script)
}

func TestExecuteEmpty(t *testing.T) {
	m := newFocused(t, "  -- only a comment\n")

	msg := execute(t, m, tea.KeyCtrlE)
	assert.Nil(t, msg)
	msg = execute(t, m, tea.KeyCtrlR)
	assert.NotNil(t, msg)
}

func TestUnfocusedIgnoresKeys(t *testing.T) {
	m := New()
	m.SetQuery("SELECT 1")

	msg := execute(t, m, tea.KeyCtrlE)
	assert.Nil(t, msg)
}

func TestColumnCompletion(t *testing.T) {
	m := newFocused(t, "SELECT us")
	m.SetColumnNames([]string{"id", "user_id", "username", "user_id"})

	m = press(t, m, tea.KeyTab)
	assert.True(t, m.CompletionActive())
	assert.Equal(t, "SELECT user_id", m.Value())

	m = press(t, m, tea.KeyTab)
	assert.Equal(t, "SELECT username", m.Value())

	m = press(t, m, tea.KeyTab)
	assert.Equal(t, "SELECT user_id", m.Value(), "candidates cycle")

	m = press(t, m, tea.KeyEsc)
	assert.False(t, m.CompletionActive())
}

func TestQualifiedCompletion(t *testing.T) {
	m := newFocused(t, "SELECT u.na")
	m.SetColumnNames([]string{"name"})

	m = press(t, m, tea.KeyTab)
	assert.Equal(t, "SELECT u.name", m.Value())
}

func TestNoCompletionWithoutColumns(t *testing.T) {
	m := newFocused(t, "SELECT us")

	m = press(t, m, tea.KeyTab)
	assert.False(t, m.CompletionActive())
}

func TestFormatKeywords(t *testing.T) {
	m := newFocused(t, "select id, name from users where note = 'select from' order by id")

	m = press(t, m, tea.KeyCtrlL)
	assert.Equal(t, "SELECT id, name FROM users WHERE note = 'select from' ORDER BY id", m.Value())
}

func TestClear(t *testing.T) {
	m := newFocused(t, "SELECT 1")

	m = press(t, m, tea.KeyCtrlK)
	assert.Empty(t, m.Value())
}
