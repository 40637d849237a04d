package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/kiosk-serial/internal/tui/colors"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().Foreground(colors.Subtext0)

	DetectedStyle = lipgloss.NewStyle().
			Foreground(colors.Base).
			Background(colors.Green).
			Bold(true).
			Padding(0, 1)

	ClearStyle = lipgloss.NewStyle().
			Foreground(colors.Text).
			Background(colors.Surface1).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)
)

type StatusType int

const (
	StatusConnected StatusType = iota
	StatusDisconnected
	StatusConnecting
	StatusError
)

// Indicator returns the one-character connection marker for status.
func Indicator(status StatusType) string {
	switch status {
	case StatusConnected:
		return lipgloss.NewStyle().Foreground(colors.Green).Render("●")
	case StatusConnecting:
		return lipgloss.NewStyle().Foreground(colors.Yellow).Render("○")
	case StatusError:
		return lipgloss.NewStyle().Foreground(colors.Red).Render("✗")
	default:
		return lipgloss.NewStyle().Foreground(colors.Red).Render("○")
	}
}

// Presence renders the human sensor badge.
func Presence(detected bool) string {
	if detected {
		return DetectedStyle.Render("PRESENT")
	}
	return ClearStyle.Render("CLEAR")
}
