package printer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allbin/kiosk-serial"
)

const (
	DefaultWriteTimeout = 5 * time.Second
	DefaultDPI          = 180
	DefaultWidthMM      = 80
)

// Printer runs print jobs. Each job opens its own handle on the given port
// and closes it before returning.
type Printer struct {
	Open         serial.Opener
	Logger       *slog.Logger
	WriteTimeout time.Duration
	DPI          int
	WidthMM      int
}

// New returns a Printer with the default timing and paper geometry.
func New(open serial.Opener, logger *slog.Logger) *Printer {
	return &Printer{
		Open:         open,
		Logger:       logger,
		WriteTimeout: DefaultWriteTimeout,
		DPI:          DefaultDPI,
		WidthMM:      DefaultWidthMM,
	}
}

// Print sets the print width and then writes cmds in order. The first bad
// command stops the job with a *PayloadError; whatever was already sent
// stays printed.
func (p *Printer) Print(ctx context.Context, device string, baud int, cmds []Command) error {
	p.Logger.Info("starting print job", "port", device, "commands", len(cmds))

	timeout := p.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	port, err := p.Open(device,
		serial.WithBaudRate(baud),
		serial.WithReadTimeout(min(timeout.Truncate(100*time.Millisecond), serial.MaxReadTimeout)),
	)
	if err != nil {
		p.Logger.Error("failed to open printer port", "port", device, "error", err)
		return err
	}
	defer func() {
		if err := port.Close(); err != nil {
			p.Logger.Warn("error closing printer port", "port", device, "error", err)
		}
	}()

	if err := p.write(ctx, port, timeout, WidthCommand(p.DPI, p.WidthMM)); err != nil {
		return err
	}

	for i, cmd := range cmds {
		writes, err := Encode(cmd)
		if err != nil {
			p.Logger.Error("print job aborted", "index", i, "type", cmd.Type, "error", err)
			return &PayloadError{Index: i, Type: cmd.Type, Err: err}
		}
		for _, data := range writes {
			if err := p.write(ctx, port, timeout, data); err != nil {
				return fmt.Errorf("print command %d (%s): %w", i, cmd.Type, err)
			}
		}
	}

	p.Logger.Info("print job finished", "port", device)
	return nil
}

// write sends data under timeout and drains the port. A short write is
// logged and drained like a full one; nothing reads back. A stalled write
// fails with serial.ErrWriteTimeout.
func (p *Printer) write(ctx context.Context, port serial.Port, timeout time.Duration, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := port.WriteContext(wctx, data)
	if err != nil {
		p.Logger.Error("failed to write to printer", "error", err)
		return err
	}
	if n < len(data) {
		p.Logger.Warn("short write to printer", "written", n, "requested", len(data))
	}
	if err := port.Drain(); err != nil {
		p.Logger.Warn("failed to flush printer port", "error", err)
	}
	return nil
}
