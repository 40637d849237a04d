package components

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/kiosk-serial/internal/eventbus"
	"github.com/allbin/kiosk-serial/internal/kiosk"
	"github.com/allbin/kiosk-serial/internal/session"
)

func event(t *testing.T, name string, payload any) eventbus.Event {
	t.Helper()
	ev, err := eventbus.NewEvent(name, payload)
	require.NoError(t, err)
	ev.Timestamp = time.Date(2026, 10, 1, 9, 30, 0, 0, time.Local)
	return ev
}

func TestFormatSerialData(t *testing.T) {
	f := NewEventFormatter()
	ev := event(t, eventbus.SerialData, session.SerialData{DeviceName: "QR", Data: "AB"})

	line := Plain(f.Format(ev))
	assert.Contains(t, line, "[09:30:00.000]")
	assert.Contains(t, line, "QR AB")

	f.ToggleHex()
	assert.Contains(t, Plain(f.Format(ev)), "QR 41 42")
}

func TestFormatPresenceAndSessionEnd(t *testing.T) {
	f := NewEventFormatter()

	line := Plain(f.Format(event(t, eventbus.HumanSensorState, session.PresenceState{DSR: true, Detected: true})))
	assert.Contains(t, line, "detected CTS:LOW DSR:HIGH")

	line = Plain(f.Format(event(t, eventbus.SessionEnded, kiosk.SessionEnded{
		Slot: "reader", Port: "/dev/ttyUSB0", Reason: "io-error", Error: "read /dev/ttyUSB0: input/output error",
	})))
	assert.Contains(t, line, "reader /dev/ttyUSB0 io-error: read /dev/ttyUSB0")

	bad := eventbus.Event{Name: eventbus.SerialData, Payload: json.RawMessage(`[1]`)}
	assert.Contains(t, Plain(f.Format(bad)), "undecodable payload")
}

func TestTerminalBoundsLog(t *testing.T) {
	term := NewTerminal(80, 10)
	ev := event(t, eventbus.SerialData, session.SerialData{DeviceName: "QR", Data: "x"})
	for i := 0; i < MaxLines+25; i++ {
		term.AddEvent(ev)
	}
	assert.Equal(t, MaxLines, term.Lines())

	term.ToggleFollow()
	assert.False(t, term.Following())
	term.Clear()
	assert.Equal(t, 0, term.Lines())
}

func TestStatusBar(t *testing.T) {
	sb := NewStatusBar("watch", "127.0.0.1:8765")
	sb.SetWidth(120)

	view := Plain(sb.View("WATCH", "09:30:00"))
	assert.Contains(t, view, "127.0.0.1:8765")
	assert.Contains(t, view, "reader: ?")
	assert.Contains(t, view, "CLEAR")

	sb.SetConnected()
	sb.SetPresence(true)
	sb.SetHealth(session.Health{Device: "/dev/ttyUSB0", IsConnected: true, IsReading: true, ReadCount: 12, UptimeSeconds: 4})
	view = Plain(sb.View("WATCH", "09:30:01"))
	assert.Contains(t, view, "/dev/ttyUSB0 reading rx:12 err:0 up:4s")
	assert.Contains(t, view, "PRESENT")

	sb.SetDisconnected(errors.New("gateway gone"))
	assert.EqualError(t, sb.Err(), "gateway gone")
}
