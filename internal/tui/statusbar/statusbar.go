package statusbar

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlzen/internal/tui/theme"
)

// Model is the status bar component.
type Model struct {
	width      int
	key        string
	driver     string
	open       int
	activePane string
	message    string
	busy       bool
}

// New creates a new status bar model.
func New() Model {
	return Model{
		activePane: "connections",
	}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetActive shows the active connection key and its driver. An empty key
// means nothing is connected.
func (m *Model) SetActive(key, driver string) {
	m.key = key
	m.driver = driver
}

// SetOpen sets the number of open connections.
func (m *Model) SetOpen(n int) {
	m.open = n
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetMessage sets a temporary status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// SetBusy marks a query as running.
func (m *Model) SetBusy(b bool) {
	m.busy = b
}

// Message returns the current status message.
func (m Model) Message() string {
	return m.message
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages (status bar has no interactive behavior).
func (m Model) Update(_ tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the status bar.
func (m Model) View() string {
	style := theme.StyleStatusBar.Width(m.width)

	var left string
	if m.key != "" {
		dot := theme.ColorSuccess
		if m.busy {
			dot = theme.ColorHighlight
		}
		left = lipgloss.NewStyle().Foreground(dot).Render("●") + " " + m.key +
			theme.StyleMuted.Render(" ("+m.driver+")")
		if m.open > 1 {
			left += theme.StyleMuted.Render(" +" + strconv.Itoa(m.open-1))
		}
	} else {
		left = lipgloss.NewStyle().
			Foreground(theme.ColorError).
			Render("●") + " disconnected"
	}

	right := "Ctrl+E: Run │ Ctrl+R: Run all │ Tab: Switch pane │ ?: Help │ q: Quit"
	if m.message != "" {
		right = m.message
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4 // borders + spacing
	if padding < 1 {
		padding = 1
	}

	return style.Render(left + strings.Repeat(" ", padding) + right)
}
