// Package session runs the background workers bound to one open serial
// device: the framed reader and the presence monitor.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allbin/kiosk-serial"
)

// Sink receives the events a worker produces.
type Sink interface {
	Emit(ctx context.Context, name string, payload any) error
}

// Health is a point-in-time view of a slot.
type Health struct {
	UptimeSeconds uint64 `json:"uptime_seconds"`
	ReadCount     uint64 `json:"read_count"`
	ErrorCount    uint64 `json:"error_count"`
	IsConnected   bool   `json:"is_connected"`
	// IsReading is false once the worker has exited, even while the handle
	// is still held.
	IsReading bool   `json:"is_reading"`
	Device    string `json:"device,omitempty"`
}

// Worker is the loop a Channel runs. It returns nil when ctx is cancelled
// and the terminal error otherwise.
type Worker func(ctx context.Context, ch *Channel) error

// Channel owns one open device handle, the counters its worker updates, and
// the worker's lifetime. A Channel is either open with a running (or
// finished) worker, or closed.
type Channel struct {
	device   string
	port     serial.Port
	openedAt time.Time

	reads  atomic.Uint64
	errors atomic.Uint64

	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
	// exitErr is written by the worker goroutine before done is closed
	exitErr error

	closeOnce sync.Once
	closeErr  error
}

// Open opens device through opener. Errors are returned as *serial.OpenError.
func Open(opener serial.Opener, device string, opts ...serial.Option) (*Channel, error) {
	port, err := opener(device, opts...)
	if err != nil {
		if !serial.IsOpenError(err) {
			err = &serial.OpenError{Device: device, Err: err}
		}
		return nil, err
	}
	return &Channel{device: device, port: port, openedAt: time.Now()}, nil
}

// Device is the path the channel was opened on.
func (c *Channel) Device() string { return c.device }

// Port is the handle the channel owns.
func (c *Channel) Port() serial.Port { return c.port }

// AddReads records n bytes or samples read.
func (c *Channel) AddReads(n uint64) { c.reads.Add(n) }

// AddError records one failed read.
func (c *Channel) AddError() { c.errors.Add(1) }

// Start runs w on its own goroutine. onExit, if set, is called on that
// goroutine with the worker's result right before the channel reports the
// worker as finished. Start must be called at most once.
func (c *Channel) Start(w Worker, onExit func(error)) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running.Store(true)

	go func() {
		defer close(c.done)
		defer c.running.Store(false)

		err := w(ctx, c)
		c.exitErr = err
		if onExit != nil {
			onExit(err)
		}
	}()
}

// Done is closed when the worker exits. It is nil before Start.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Close cancels the worker, waits for it to return and releases the handle.
// Further calls return the first result.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}
		if err := c.port.Close(); err != nil && !errors.Is(err, serial.ErrPortClosed) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

// ExitErr is the worker's terminal error. It is only meaningful after Done
// is closed.
func (c *Channel) ExitErr() error { return c.exitErr }

// Health never blocks on the worker.
func (c *Channel) Health(now time.Time) Health {
	return Health{
		UptimeSeconds: uint64(max(now.Sub(c.openedAt), 0) / time.Second),
		ReadCount:     c.reads.Load(),
		ErrorCount:    c.errors.Load(),
		IsConnected:   true,
		IsReading:     c.running.Load(),
		Device:        c.device,
	}
}
