package theme

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Palette is a named set of colors.
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Border    lipgloss.Color
	Muted     lipgloss.Color
	Highlight lipgloss.Color
	StatusBg  lipgloss.Color
	StatusFg  lipgloss.Color
}

var palettes = map[string]Palette{
	"default": {
		Primary:   "63",  // Purple
		Secondary: "241", // Gray
		Success:   "42",  // Green
		Error:     "196", // Red
		Border:    "238", // Dark gray
		Muted:     "245", // Light gray
		Highlight: "229", // Yellow
		StatusBg:  "236",
		StatusFg:  "252",
	},
	"ocean": {
		Primary:   "39",
		Secondary: "67",
		Success:   "79",
		Error:     "203",
		Border:    "24",
		Muted:     "110",
		Highlight: "195",
		StatusBg:  "17",
		StatusFg:  "153",
	},
	"mono": {
		Primary:   "255",
		Secondary: "244",
		Success:   "250",
		Error:     "255",
		Border:    "240",
		Muted:     "244",
		Highlight: "231",
		StatusBg:  "235",
		StatusFg:  "252",
	},
}

// Color palette currently in use.
var (
	ColorPrimary   lipgloss.Color
	ColorSecondary lipgloss.Color
	ColorSuccess   lipgloss.Color
	ColorError     lipgloss.Color
	ColorBorder    lipgloss.Color
	ColorMuted     lipgloss.Color
	ColorHighlight lipgloss.Color
)

// Shared styles used across TUI components.
var (
	StyleBorder       lipgloss.Style
	StyleActiveBorder lipgloss.Style
	StyleTitle        lipgloss.Style
	StyleMuted        lipgloss.Style
	StyleError        lipgloss.Style
	StyleSuccess      lipgloss.Style
	StyleStatusBar    lipgloss.Style
)

func init() {
	apply(palettes["default"])
}

// Names lists the available palettes.
func Names() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Use switches every color and style to the named palette. An empty name
// selects the default.
func Use(name string) error {
	if name == "" {
		name = "default"
	}
	p, ok := palettes[name]
	if !ok {
		return fmt.Errorf("unknown theme %q (want one of %v)", name, Names())
	}
	apply(p)
	return nil
}

func apply(p Palette) {
	ColorPrimary = p.Primary
	ColorSecondary = p.Secondary
	ColorSuccess = p.Success
	ColorError = p.Error
	ColorBorder = p.Border
	ColorMuted = p.Muted
	ColorHighlight = p.Highlight

	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleActiveBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary)

	StyleTitle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)

	StyleMuted = lipgloss.NewStyle().
		Foreground(ColorMuted)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorError)

	StyleSuccess = lipgloss.NewStyle().
		Foreground(ColorSuccess)

	StyleStatusBar = lipgloss.NewStyle().
		Background(p.StatusBg).
		Foreground(p.StatusFg).
		Padding(0, 1)
}
