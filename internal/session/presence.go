package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/eventbus"
)

// DefaultPollInterval is the gap between control-line samples.
const DefaultPollInterval = 50 * time.Millisecond

// PinState is one CTS/DSR sample.
type PinState struct {
	CTS bool
	DSR bool
}

// Detected reports presence: either line asserted.
func (p PinState) Detected() bool { return p.CTS || p.DSR }

// PresenceState is the payload of a human-sensor-state event. Timestamp is
// Unix milliseconds.
type PresenceState struct {
	CTS       bool  `json:"cts"`
	DSR       bool  `json:"dsr"`
	Detected  bool  `json:"detected"`
	Timestamp int64 `json:"timestamp"`
}

// PresenceMonitor polls CTS and DSR and emits an event whenever the pair
// differs from the last one emitted.
type PresenceMonitor struct {
	Sink     Sink
	Logger   *slog.Logger
	Interval time.Duration
	// ErrorLogEvery limits how often read failures are logged.
	ErrorLogEvery time.Duration

	lines serial.Port
}

// Attach duplicates the channel's handle for sampling. Call it before
// starting the worker so a failure reaches the caller; Run attaches on its
// own when this was skipped.
func (m *PresenceMonitor) Attach(ch *Channel) error {
	lines, err := ch.Port().Duplicate()
	if err != nil {
		return fmt.Errorf("duplicate presence handle %s: %w", ch.Device(), err)
	}
	m.lines = lines
	return nil
}

// Run implements Worker. It samples through the duplicated handle, which it
// owns and closes on return. Sample errors are counted and logged; the loop
// keeps going.
func (m *PresenceMonitor) Run(ctx context.Context, ch *Channel) error {
	if m.lines == nil {
		if err := m.Attach(ch); err != nil {
			ch.AddError()
			m.Logger.Error("failed to attach presence monitor", "port", ch.Device(), "error", err)
			return err
		}
	}
	lines := m.lines
	defer lines.Close()

	interval := m.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	every := m.ErrorLogEvery
	if every <= 0 {
		every = time.Second
	}
	limiter := rate.NewLimiter(rate.Every(every), 1)
	suppressed := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last PinState
	for {
		m.sample(ctx, ch, lines, &last, limiter, &suppressed)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *PresenceMonitor) sample(ctx context.Context, ch *Channel, lines serial.Port, last *PinState, limiter *rate.Limiter, suppressed *int) {
	signals, err := lines.GetModemSignals()
	if err != nil {
		ch.AddError()
		if limiter.Allow() {
			m.Logger.Warn("failed to read presence lines",
				"port", ch.Device(), "error", err, "suppressed", *suppressed)
			*suppressed = 0
		} else {
			*suppressed++
		}
		return
	}
	ch.AddReads(1)

	state := PinState{CTS: signals.CTS, DSR: signals.DSR}
	if state == *last {
		return
	}
	*last = state

	payload := PresenceState{
		CTS:       state.CTS,
		DSR:       state.DSR,
		Detected:  state.Detected(),
		Timestamp: time.Now().UnixMilli(),
	}
	m.Logger.Info("presence changed", "cts", state.CTS, "dsr", state.DSR, "detected", payload.Detected)
	if err := m.Sink.Emit(ctx, eventbus.HumanSensorState, payload); err != nil {
		m.Logger.Warn("failed to emit presence state", "error", err)
	}
}
