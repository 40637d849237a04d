package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/kiosk-serial/internal/eventbus"
	"github.com/allbin/kiosk-serial/internal/session"
	"github.com/allbin/kiosk-serial/internal/tui/colors"
	"github.com/allbin/kiosk-serial/internal/tui/components"
	"github.com/allbin/kiosk-serial/internal/tui/keys"
	"github.com/allbin/kiosk-serial/internal/tui/styles"
)

// HealthInterval is how often the dashboard polls serial_health.
const HealthInterval = 2 * time.Second

// Source is the gateway connection the dashboard reads from.
// *gateway.Client implements it.
type Source interface {
	Events() <-chan eventbus.Event
	Call(ctx context.Context, method string, params, out any) error
}

type ConnectionStatusMsg struct {
	Connected bool
	Error     error
}

type healthTickMsg time.Time

// WatchModel is the live event dashboard.
type WatchModel struct {
	src       Source
	terminal  *components.Terminal
	statusBar *components.StatusBar
	help      help.Model
	keys      keys.WatchKeys
	ready     bool
	connected bool
	presence  session.PresenceState
	now       func() time.Time
}

func NewWatchModel(src Source, addr string) *WatchModel {
	m := &WatchModel{
		src:       src,
		terminal:  components.NewTerminal(80, 20),
		statusBar: components.NewStatusBar("Kiosk Watch", addr),
		help:      help.New(),
		keys:      keys.NewWatchKeys(),
		connected: true,
		now:       time.Now,
	}
	m.statusBar.SetConnected()
	return m
}

func (m *WatchModel) Terminal() *components.Terminal { return m.terminal }

func (m *WatchModel) Presence() session.PresenceState { return m.presence }

func (m *WatchModel) Connected() bool { return m.connected }

func (m *WatchModel) waitForEvent() tea.Msg {
	ev, ok := <-m.src.Events()
	if !ok {
		return ConnectionStatusMsg{Connected: false}
	}
	return components.EventReceivedMsg{Event: ev}
}

func (m *WatchModel) fetchHealth() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), HealthInterval)
	defer cancel()
	var h session.Health
	err := m.src.Call(ctx, "serial_health", nil, &h)
	return components.HealthMsg{Health: h, Err: err}
}

func tickHealth() tea.Cmd {
	return tea.Tick(HealthInterval, func(t time.Time) tea.Msg { return healthTickMsg(t) })
}

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent, m.fetchHealth, tickHealth())
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.terminal.SetSize(msg.Width, msg.Height-1)
		m.statusBar.SetWidth(msg.Width)
		m.ready = true

	case components.EventReceivedMsg:
		m.terminal.AddEvent(msg.Event)
		switch msg.Event.Name {
		case eventbus.HumanSensorState:
			var s session.PresenceState
			if json.Unmarshal(msg.Event.Payload, &s) == nil {
				m.presence = s
				m.statusBar.SetPresence(s.Detected)
			}
		case eventbus.SessionEnded:
			cmds = append(cmds, m.fetchHealth)
		}
		cmds = append(cmds, m.waitForEvent)

	case components.HealthMsg:
		if msg.Err == nil {
			m.statusBar.SetHealth(msg.Health)
		}

	case healthTickMsg:
		if m.connected {
			cmds = append(cmds, m.fetchHealth, tickHealth())
		}

	case ConnectionStatusMsg:
		m.connected = msg.Connected
		if msg.Connected {
			m.statusBar.SetConnected()
		} else {
			m.statusBar.SetDisconnected(msg.Error)
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Clear):
			m.terminal.Clear()
		case key.Matches(msg, m.keys.ToggleHex):
			m.terminal.ToggleHex()
		case key.Matches(msg, m.keys.Pause):
			m.terminal.ToggleFollow()
		case key.Matches(msg, m.keys.Refresh):
			cmds = append(cmds, m.fetchHealth)
		}
	}

	cmds = append(cmds, m.terminal.Update(msg))
	return m, tea.Batch(cmds...)
}

func (m *WatchModel) View() string {
	content := "Waiting for events..."
	if m.ready {
		content = m.terminal.View()
	}

	mode := "FOLLOW"
	if !m.terminal.Following() {
		mode = "PAUSED"
	}
	if !m.connected {
		mode = "OFFLINE"
	}
	bar := m.statusBar.View(mode, m.now().Format("15:04:05"))

	parts := []string{styles.ContentBorderStyle.Render(content)}
	if m.help.ShowAll {
		parts = append(parts, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(1, 2).
			Margin(1, 0).
			Render(m.help.View(m.keys)))
	}
	parts = append(parts, bar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
