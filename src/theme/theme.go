package theme

import "github.com/charmbracelet/lipgloss"

// Theme represents a color theme
var CurrentTheme = struct {
	Primary    lipgloss.Color
	Text       lipgloss.Color
	TextMuted  lipgloss.Color
	Warning    lipgloss.Color
	Danger     lipgloss.Color
	Background lipgloss.Color
}{
	Primary:    lipgloss.Color("#00ff00"),
	Text:       lipgloss.Color("#ffffff"),
	TextMuted:  lipgloss.Color("#808080"),
	Warning:    lipgloss.Color("#ffaa00"),
	Danger:     lipgloss.Color("#ff4444"),
	Background: lipgloss.Color("#000000"),
}

// Styles derived from the current theme.
var (
	Title  = lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Primary)
	Muted  = lipgloss.NewStyle().Foreground(CurrentTheme.TextMuted)
	Warn   = lipgloss.NewStyle().Foreground(CurrentTheme.Warning)
	Danger = lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Danger)
)

// UtilizationStyle picks a style for a context utilization level name.
func UtilizationStyle(level string) lipgloss.Style {
	switch level {
	case "CRITICAL":
		return Danger
	case "HIGH":
		return Warn
	default:
		return lipgloss.NewStyle().Foreground(CurrentTheme.Text)
	}
}
