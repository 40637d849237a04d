package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/allbin/kiosk-serial/internal/eventbus"
)

// MaxLines bounds the event log kept in the viewport.
const MaxLines = 1000

// Terminal is a scrolling event log.
type Terminal struct {
	viewport  viewport.Model
	formatter *EventFormatter
	events    []eventbus.Event
	follow    bool
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		viewport:  viewport.New(width, height),
		formatter: NewEventFormatter(),
		follow:    true,
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) Width() int { return t.viewport.Width }

func (t *Terminal) Lines() int { return len(t.events) }

func (t *Terminal) Following() bool { return t.follow }

func (t *Terminal) AddEvent(ev eventbus.Event) {
	t.events = append(t.events, ev)
	if len(t.events) > MaxLines {
		t.events = t.events[len(t.events)-MaxLines:]
	}
	t.refresh()
}

func (t *Terminal) refresh() {
	t.viewport.SetContent(strings.Join(t.formatter.FormatAll(t.events), "\n"))
	if t.follow {
		t.viewport.GotoBottom()
	}
}

func (t *Terminal) Clear() {
	t.events = nil
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
	t.refresh()
}

func (t *Terminal) ToggleFollow() {
	t.follow = !t.follow
	if t.follow {
		t.viewport.GotoBottom()
	}
}

// Update forwards only scrolling input to the viewport so the dashboard's
// own key bindings are not consumed.
func (t *Terminal) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		t.viewport, cmd = t.viewport.Update(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "down", "pgup", "pgdown", "k", "j":
			t.viewport, cmd = t.viewport.Update(msg)
		}
	}
	return cmd
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
