package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/kiosk-serial/internal/session"
	"github.com/allbin/kiosk-serial/internal/tui/colors"
	"github.com/allbin/kiosk-serial/internal/tui/styles"
)

// HealthMsg carries a serial_health result into the program.
type HealthMsg struct {
	Health session.Health
	Err    error
}

type StatusBar struct {
	title    string
	addr     string
	status   styles.StatusType
	err      error
	width    int
	health   *session.Health
	presence bool
}

func NewStatusBar(title, addr string) *StatusBar {
	return &StatusBar{title: title, addr: addr, status: styles.StatusConnecting}
}

func (sb *StatusBar) SetWidth(width int) { sb.width = width }

func (sb *StatusBar) SetConnected() {
	sb.status = styles.StatusConnected
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	sb.err = err
	if err != nil {
		sb.status = styles.StatusError
		return
	}
	sb.status = styles.StatusDisconnected
}

func (sb *StatusBar) SetHealth(h session.Health) { sb.health = &h }

func (sb *StatusBar) SetPresence(detected bool) { sb.presence = detected }

func (sb *StatusBar) Err() error { return sb.err }

func (sb *StatusBar) readerInfo() string {
	h := sb.health
	if h == nil {
		return "reader: ?"
	}
	if !h.IsConnected {
		return "reader: idle"
	}
	state := "reading"
	if !h.IsReading {
		state = "stalled"
	}
	return fmt.Sprintf("%s %s rx:%d err:%d up:%ds", h.Device, state, h.ReadCount, h.ErrorCount, h.UptimeSeconds)
}

// View renders the single-line bar: mode, gateway address and connection
// marker on the left, reader health and the presence badge on the right.
func (sb *StatusBar) View(mode, timestamp string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeText := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(colors.Blue).
		Bold(true).
		Padding(0, 1).
		Render(mode)
	addr := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.addr)
	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := lipgloss.JoinHorizontal(lipgloss.Left, modeText, addr, styles.Indicator(sb.status), divider)

	reader := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(sb.readerInfo())
	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)
	right := lipgloss.JoinHorizontal(lipgloss.Left, reader, styles.Presence(sb.presence), divider, clock)

	spacer := width - lipgloss.Width(left) - lipgloss.Width(right)
	if spacer < 1 {
		spacer = 1
	}

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, left, lipgloss.NewStyle().Width(spacer).Render(""), right))
}
