package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/allbin/kiosk-serial/internal/eventbus"
	"github.com/allbin/kiosk-serial/internal/framing"
)

// SerialData is the payload of a serial-data event.
type SerialData struct {
	DeviceName string `json:"device_name"`
	Data       string `json:"data"`
}

// FramedReader pulls bytes one at a time from the channel, frames them and
// emits each completed message.
type FramedReader struct {
	DeviceName   string
	Sink         Sink
	Logger       *slog.Logger
	FrameTimeout time.Duration

	now func() time.Time
}

// Run implements Worker. A read error counts against the channel and ends
// the session; it is not retried.
func (r *FramedReader) Run(ctx context.Context, ch *Channel) error {
	timeout := r.FrameTimeout
	if timeout <= 0 {
		timeout = framing.DefaultTimeout
	}
	now := r.now
	if now == nil {
		now = time.Now
	}

	fb := framing.NewWithClock(timeout, now)
	port := ch.Port()
	buf := make([]byte, 1)

	for ctx.Err() == nil {
		if fb.CheckTimeout(now()) {
			r.Logger.Debug("incomplete frame timed out", "device", r.DeviceName)
		}

		n, err := port.Read(buf)
		if err != nil {
			ch.AddError()
			r.Logger.Error("serial read failed, ending session",
				"device", r.DeviceName, "port", ch.Device(), "error", err)
			return fmt.Errorf("read %s: %w", ch.Device(), err)
		}
		if n == 0 {
			runtime.Gosched()
			continue
		}

		ch.AddReads(1)
		msg, ok := fb.Feed(buf[0])
		if !ok {
			continue
		}

		r.Logger.Debug("frame received", "device", r.DeviceName, "bytes", len(msg))
		payload := SerialData{DeviceName: r.DeviceName, Data: msg}
		if err := r.Sink.Emit(ctx, eventbus.SerialData, payload); err != nil {
			r.Logger.Warn("failed to emit serial data", "device", r.DeviceName, "error", err)
		}
	}
	return nil
}
