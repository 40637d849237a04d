package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/eventbus"
	"github.com/allbin/kiosk-serial/internal/kiosk"
	"github.com/allbin/kiosk-serial/internal/printer"
	"github.com/allbin/kiosk-serial/internal/serialtest"
	"github.com/allbin/kiosk-serial/internal/session"
)

type testEnv struct {
	srv     *Server
	devices *serialtest.Bus
	events  *eventbus.Bus
}

func startTestServer(t *testing.T, token string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	devices := serialtest.NewBus()
	devices.Add("/dev/ttyUSB0")
	devices.Add("/dev/ttyUSB1")
	devices.Add("/dev/ttyUSB2")

	events := eventbus.New(logger)
	svc := kiosk.New(kiosk.Options{
		Open:             devices.Open,
		ListPorts:        func() ([]string, error) { return devices.Names(), nil },
		Sink:             events,
		Logger:           logger,
		PresenceInterval: 5 * time.Millisecond,
	})

	srv := NewServer(events, NewStaticTokenAuth(token), "127.0.0.1:0", logger)
	RegisterKioskHandlers(srv, svc, AppInfo{Version: "1.4.0", ReleaseDate: "2026-09-30", MachineID: "kiosk-07"}, logger)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Start(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Stop(context.Background())
		svc.Close()
		events.Close()
	})
	return &testEnv{srv: srv, devices: devices, events: events}
}

func dial(t *testing.T, env *testEnv, token string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := Dial(ctx, env.srv.BoundAddr(), token)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func call(t *testing.T, c *Client, method string, params, out any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return c.Call(ctx, method, params, out)
}

func TestStaticTokenAuth(t *testing.T) {
	assert.NoError(t, (&StaticTokenAuth{}).Authenticate("anything"))
	a := NewStaticTokenAuth("s3cret")
	assert.NoError(t, a.Authenticate("s3cret"))
	assert.ErrorIs(t, a.Authenticate("s3cre"), ErrUnauthorized)
	assert.ErrorIs(t, a.Authenticate(""), ErrUnauthorized)
}

func TestUpgradeRejectsBadToken(t *testing.T) {
	env := startTestServer(t, "s3cret")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws://"+env.srv.BoundAddr()+"/ws?token=wrong", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListPortsAndAppInfo(t *testing.T) {
	env := startTestServer(t, "s3cret")
	c := dial(t, env, "s3cret")

	var ports []string
	require.NoError(t, call(t, c, "list_ports", nil, &ports))
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2"}, ports)

	var info AppInfo
	require.NoError(t, call(t, c, "app_info", nil, &info))
	assert.Equal(t, "kiosk-07", info.MachineID)
	assert.Equal(t, "1.4.0", info.Version)
}

func TestUnknownMethod(t *testing.T) {
	env := startTestServer(t, "")
	c := dial(t, env, "")
	err := call(t, c, "reboot", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestFramedReadingForwardsEvents(t *testing.T) {
	env := startTestServer(t, "")
	c := dial(t, env, "")

	require.NoError(t, call(t, c, "start_framed_reading",
		map[string]any{"port": "/dev/ttyUSB0", "baud": 9600, "device_name": "QR"}, nil))

	env.devices.Device("/dev/ttyUSB0").Feed([]byte("\x02A-17\x03"))

	select {
	case ev := <-c.Events():
		assert.Equal(t, eventbus.SerialData, ev.Name)
		assert.JSONEq(t, `{"device_name":"QR","data":"A-17"}`, string(ev.Payload))
		assert.NotEmpty(t, ev.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no serial-data event")
	}

	var h session.Health
	require.NoError(t, call(t, c, "serial_health", nil, &h))
	assert.True(t, h.IsConnected)
	assert.Equal(t, uint64(6), h.ReadCount)

	require.NoError(t, call(t, c, "stop_framed_reading", nil, nil))
	require.NoError(t, call(t, c, "serial_health", nil, &h))
	assert.False(t, h.IsConnected)
}

func TestStartFramedReadingErrors(t *testing.T) {
	env := startTestServer(t, "")
	c := dial(t, env, "")

	err := call(t, c, "start_framed_reading", map[string]any{"port": "/dev/ttyUSB9", "baud": 9600}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), serial.ErrDeviceNotFound.Error())

	err = call(t, c, "start_framed_reading", json.RawMessage(`{"port": 3}`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), kiosk.ErrInvalidRequest.Error())
}

func TestPresenceMonitoringForwardsState(t *testing.T) {
	env := startTestServer(t, "")
	c := dial(t, env, "")

	require.NoError(t, call(t, c, "start_presence_monitoring", map[string]any{"port": "/dev/ttyUSB1", "baud": 9600}, nil))
	env.devices.Device("/dev/ttyUSB1").SetSignals(serial.ModemSignals{CTS: true})

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Name != eventbus.HumanSensorState {
				continue
			}
			var state session.PresenceState
			require.NoError(t, json.Unmarshal(ev.Payload, &state))
			assert.True(t, state.CTS)
			assert.True(t, state.Detected)
			require.NoError(t, call(t, c, "stop_presence_monitoring", nil, nil))
			return
		case <-deadline:
			t.Fatal("no human-sensor-state event")
		}
	}
}

func TestPrint(t *testing.T) {
	env := startTestServer(t, "")
	c := dial(t, env, "")

	job := kiosk.PrintRequest{
		Port: "/dev/ttyUSB2",
		Baud: 115200,
		Commands: []printer.Command{
			printer.CmdValue(printer.Alignment, "center"),
			printer.CmdValue(printer.Text, "Queue 42"),
			printer.Cmd(printer.FullCut),
		},
	}
	require.NoError(t, call(t, c, "print", job, nil))
	assert.Contains(t, string(env.devices.Device("/dev/ttyUSB2").Written()), "Queue 42")

	err := call(t, c, "print", json.RawMessage(`{"port":"/dev/ttyUSB2","baud":115200,"commands":[{"type":"qr_code"}]}`), nil)
	require.Error(t, err)
}

func TestLogEvent(t *testing.T) {
	env := startTestServer(t, "")
	c := dial(t, env, "")
	assert.NoError(t, call(t, c, "log_event", LogEvent{Level: "warn", Message: "button stuck"}, nil))
	assert.Equal(t, slog.LevelWarn, uiLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, uiLevel(""))
}

func TestHealthz(t *testing.T) {
	env := startTestServer(t, "")
	resp, err := http.Get("http://" + env.srv.BoundAddr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var h session.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.False(t, h.IsConnected)
}

func TestIgnoresNonRequestFrames(t *testing.T) {
	env := startTestServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws://"+env.srv.BoundAddr()+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, ws, Frame{Type: FrameTypeEvent, Method: "serial-data"}))
	require.NoError(t, wsjson.Write(ctx, ws, Frame{Type: FrameTypeRequest, ID: 9, Method: "app_info"}))

	var resp Frame
	require.NoError(t, wsjson.Read(ctx, ws, &resp))
	assert.Equal(t, FrameTypeResponse, resp.Type)
	assert.Equal(t, uint64(9), resp.ID)
}
