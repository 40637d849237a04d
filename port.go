package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Port represents a serial port connection interface
type Port interface {
	io.ReadWriteCloser
	WriteContext(ctx context.Context, data []byte) (int, error)
	ReadContext(ctx context.Context, buf []byte) (int, error)
	Drain() error
	FlushInput() error
	FlushOutput() error

	// Modem signal control and monitoring
	GetModemSignals() (ModemSignals, error)
	SetRTS(state bool) error
	SetDTR(state bool) error

	// Duplicate returns a second handle onto the same open device. Closing
	// either handle does not close the other.
	Duplicate() (Port, error)
}

// Opener opens a device. Open satisfies it; tests substitute in-memory devices.
type Opener func(device string, opts ...Option) (Port, error)

// ModemSignals represents modem control signal states
type ModemSignals struct {
	CTS bool // Clear To Send
	DSR bool // Data Set Ready
	RI  bool // Ring Indicator
	DCD bool // Data Carrier Detect
	RTS bool // Request To Send
	DTR bool // Data Terminal Ready
}

type ioResult struct {
	n   int
	err error
}

// withContext runs a blocking syscall-style operation and returns early if
// ctx finishes first. The operation keeps running in the background in that
// case; the port's own read timeout bounds how long. An expired deadline is
// reported as timeoutErr wrapping context.DeadlineExceeded.
func withContext(ctx context.Context, timeoutErr error, op func() (int, error)) (int, error) {
	select {
	case <-ctx.Done():
		return 0, contextErr(ctx, timeoutErr)
	default:
	}

	resultCh := make(chan ioResult, 1)
	go func() {
		n, err := op()
		resultCh <- ioResult{n: n, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		return 0, contextErr(ctx, timeoutErr)
	}
}

func contextErr(ctx context.Context, timeoutErr error) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", timeoutErr, err)
	}
	return err
}
