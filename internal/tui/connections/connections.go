package connections

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlzen/internal/app"
	"github.com/joacominatel/sqlzen/internal/tui/theme"
)

// SelectMsg asks the app to make Key the active connection.
type SelectMsg struct {
	Key string
}

// PingMsg asks the app to ping Key.
type PingMsg struct {
	Key string
}

// NewMsg asks the app to open the connect form.
type NewMsg struct{}

// Model is the live connections list.
type Model struct {
	items    []app.ConnectionInfo
	versions map[string]string
	active   string
	cursor   int
	width    int
	height   int
	focused  bool
	now      func() time.Time
}

// New creates a new connections model.
func New() Model {
	return Model{
		versions: make(map[string]string),
		now:      time.Now,
	}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Focused returns whether the list has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetItems replaces the listed connections, keeping the cursor on the
// same key when it is still present.
func (m *Model) SetItems(items []app.ConnectionInfo) {
	var current string
	if m.cursor >= 0 && m.cursor < len(m.items) {
		current = m.items[m.cursor].Key
	}
	m.items = items
	m.cursor = 0
	for i, it := range items {
		if it.Key == current {
			m.cursor = i
		}
	}
}

// SetActive marks key as the connection queries run against.
func (m *Model) SetActive(key string) {
	m.active = key
	for i, it := range m.items {
		if it.Key == key {
			m.cursor = i
		}
	}
}

// Active returns the active key.
func (m Model) Active() string {
	return m.active
}

// SetVersion records the server version reported for key.
func (m *Model) SetVersion(key, version string) {
	m.versions[key] = version
}

// Selected returns the key under the cursor.
func (m Model) Selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return "", false
	}
	return m.items[m.cursor].Key, true
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		if key, ok := m.Selected(); ok {
			return m, func() tea.Msg { return SelectMsg{Key: key} }
		}
	case "p":
		if key, ok := m.Selected(); ok {
			return m, func() tea.Msg { return PingMsg{Key: key} }
		}
	case "n":
		return m, func() tea.Msg { return NewMsg{} }
	}

	return m, nil
}

// View renders the list.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)

	title := titleStyle.Render("Connections")

	if len(m.items) == 0 {
		return title + "\n" + theme.StyleMuted.Render("  No connection\n  n: New")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	// Two lines per entry
	visible := (m.height - 2) / 2
	if visible < 1 {
		visible = 1
	}

	scrollOffset := 0
	if m.cursor >= visible {
		scrollOffset = m.cursor - visible + 1
	}

	for i := scrollOffset; i < len(m.items) && i < scrollOffset+visible; i++ {
		if i > scrollOffset {
			b.WriteString("\n")
		}
		b.WriteString(m.renderItem(m.items[i], i == m.cursor))
	}

	return b.String()
}

func (m Model) renderItem(info app.ConnectionInfo, selected bool) string {
	marker := "  "
	if info.Key == m.active {
		marker = lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("● ")
	}

	name := m.fit(info.Key, 2)
	if selected && m.focused {
		name = lipgloss.NewStyle().
			Foreground(theme.ColorHighlight).
			Bold(true).
			Render(name)
	}

	detail := fmt.Sprintf("%s · %s", info.Driver, since(m.now().Sub(info.ConnectedAt)))
	if v := m.versions[info.Key]; v != "" {
		detail = fmt.Sprintf("%s · %s", info.Driver, v)
	}

	return marker + name + "\n    " + theme.StyleMuted.Render(m.fit(detail, 4))
}

// fit truncates s to the pane width minus indent.
func (m Model) fit(s string, indent int) string {
	limit := m.width - indent - 2
	if m.width <= 0 || lipgloss.Width(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > limit-2 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + ".."
}

func since(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
