package components

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/kiosk-serial/internal/eventbus"
	"github.com/allbin/kiosk-serial/internal/kiosk"
	"github.com/allbin/kiosk-serial/internal/session"
	"github.com/allbin/kiosk-serial/internal/tui/colors"
)

// EventReceivedMsg carries one forwarded event into the program.
type EventReceivedMsg struct {
	Event eventbus.Event
}

type EventFormatter struct {
	ShowHex bool
}

func NewEventFormatter() *EventFormatter {
	return &EventFormatter{}
}

func (f *EventFormatter) ToggleHex() {
	f.ShowHex = !f.ShowHex
}

func tag(text string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(text)
}

// Format renders one event as a single log line.
func (f *EventFormatter) Format(ev eventbus.Event) string {
	ts := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Render(fmt.Sprintf("[%s]", ev.Timestamp.Local().Format("15:04:05.000")))

	var body string
	switch ev.Name {
	case eventbus.SerialData:
		var d session.SerialData
		if err := json.Unmarshal(ev.Payload, &d); err != nil {
			body = tag("DATA", colors.Red) + " undecodable payload"
			break
		}
		body = fmt.Sprintf("%s %s %s", tag("↙ DATA", colors.Sky), tag(d.DeviceName, colors.Mauve), f.data(d.Data))

	case eventbus.HumanSensorState:
		var s session.PresenceState
		if err := json.Unmarshal(ev.Payload, &s); err != nil {
			body = tag("SENSOR", colors.Red) + " undecodable payload"
			break
		}
		state := tag("clear", colors.Overlay0)
		if s.Detected {
			state = tag("detected", colors.Green)
		}
		body = fmt.Sprintf("%s %s CTS:%s DSR:%s", tag("◉ SENSOR", colors.Teal), state, level(s.CTS), level(s.DSR))

	case eventbus.SessionEnded:
		var e kiosk.SessionEnded
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			body = tag("ENDED", colors.Red) + " undecodable payload"
			break
		}
		c := colors.Yellow
		if e.Reason != "stopped" {
			c = colors.Red
		}
		body = fmt.Sprintf("%s %s %s %s", tag("■ ENDED", c), e.Slot, e.Port, e.Reason)
		if e.Error != "" {
			body += ": " + e.Error
		}

	default:
		body = fmt.Sprintf("%s %s", tag(ev.Name, colors.Peach), string(ev.Payload))
	}
	return ts + " " + body
}

func (f *EventFormatter) data(s string) string {
	if !f.ShowHex {
		return s
	}
	return fmt.Sprintf("% X", []byte(s))
}

func level(b bool) string {
	if b {
		return "HIGH"
	}
	return "LOW"
}

func (f *EventFormatter) FormatAll(events []eventbus.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = f.Format(ev)
	}
	return out
}

// Plain strips styling, for tests and non-TTY output.
func Plain(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc:
			if r >= '@' && r <= '~' && r != '[' {
				inEsc = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
