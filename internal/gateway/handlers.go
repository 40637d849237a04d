package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/allbin/kiosk-serial/internal/kiosk"
	"github.com/allbin/kiosk-serial/internal/session"
)

// Backend is the command surface the gateway exposes. *kiosk.Service
// implements it.
type Backend interface {
	ListPorts() ([]string, error)
	StartFramedReading(req kiosk.ReadRequest) error
	StopFramedReading() error
	SerialHealth() (session.Health, error)
	StartPresenceMonitoring(req kiosk.PresenceRequest) error
	StopPresenceMonitoring() error
	Print(ctx context.Context, req kiosk.PrintRequest) error
}

// AppInfo is returned by app_info.
type AppInfo struct {
	Version     string `json:"version"`
	ReleaseDate string `json:"release_date"`
	MachineID   string `json:"machine_id"`
}

// LogEvent is the payload of log_event: a line the UI wants in the
// service log.
type LogEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type ack struct {
	Status string `json:"status"`
}

var okAck = ack{Status: "ok"}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", kiosk.ErrInvalidRequest, err)
	}
	return nil
}

// RegisterKioskHandlers wires every kiosk command onto s, plus GET /healthz.
func RegisterKioskHandlers(s *Server, b Backend, info AppInfo, logger *slog.Logger) {
	s.RegisterHandler("list_ports", func(context.Context, json.RawMessage) (any, error) {
		ports, err := b.ListPorts()
		if err != nil {
			return nil, err
		}
		if ports == nil {
			ports = []string{}
		}
		return ports, nil
	})

	s.RegisterHandler("start_framed_reading", func(_ context.Context, p json.RawMessage) (any, error) {
		var req kiosk.ReadRequest
		if err := decode(p, &req); err != nil {
			return nil, err
		}
		if err := b.StartFramedReading(req); err != nil {
			return nil, err
		}
		return okAck, nil
	})

	s.RegisterHandler("stop_framed_reading", func(context.Context, json.RawMessage) (any, error) {
		if err := b.StopFramedReading(); err != nil {
			return nil, err
		}
		return okAck, nil
	})

	s.RegisterHandler("serial_health", func(context.Context, json.RawMessage) (any, error) {
		return b.SerialHealth()
	})

	s.RegisterHandler("start_presence_monitoring", func(_ context.Context, p json.RawMessage) (any, error) {
		var req kiosk.PresenceRequest
		if err := decode(p, &req); err != nil {
			return nil, err
		}
		if err := b.StartPresenceMonitoring(req); err != nil {
			return nil, err
		}
		return okAck, nil
	})

	s.RegisterHandler("stop_presence_monitoring", func(context.Context, json.RawMessage) (any, error) {
		if err := b.StopPresenceMonitoring(); err != nil {
			return nil, err
		}
		return okAck, nil
	})

	s.RegisterHandler("print", func(ctx context.Context, p json.RawMessage) (any, error) {
		var req kiosk.PrintRequest
		if err := decode(p, &req); err != nil {
			return nil, err
		}
		if err := b.Print(ctx, req); err != nil {
			return nil, err
		}
		return okAck, nil
	})

	s.RegisterHandler("log_event", func(ctx context.Context, p json.RawMessage) (any, error) {
		var ev LogEvent
		if err := decode(p, &ev); err != nil {
			return nil, err
		}
		logger.Log(ctx, uiLevel(ev.Level), ev.Message, "source", "ui")
		return okAck, nil
	})

	s.RegisterHandler("app_info", func(context.Context, json.RawMessage) (any, error) {
		return info, nil
	})

	s.RegisterHTTPRoute("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h, err := b.SerialHealth()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(h)
	})
}

func uiLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
