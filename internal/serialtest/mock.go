// Package serialtest provides in-memory serial devices for tests.
package serialtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allbin/kiosk-serial"
)

// Bus is a set of named mock devices. Its Open method has the shape of
// serial.Open.
type Bus struct {
	mu      sync.Mutex
	devices map[string]*Device
}

func NewBus() *Bus {
	return &Bus{devices: make(map[string]*Device)}
}

// Add registers a device under name, replacing any previous one.
func (b *Bus) Add(name string) *Device {
	d := &Device{name: name, notify: make(chan struct{}, 1)}
	b.mu.Lock()
	b.devices[name] = d
	b.mu.Unlock()
	return d
}

// Device returns the device registered under name.
func (b *Bus) Device(name string) *Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.devices[name]
}

// Names lists the registered device names.
func (b *Bus) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.devices))
	for name := range b.devices {
		names = append(names, name)
	}
	return names
}

// Open opens name exclusively. A second Open while a handle is live fails
// with serial.ErrDeviceInUse.
func (b *Bus) Open(name string, opts ...serial.Option) (serial.Port, error) {
	config := serial.DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, &serial.OpenError{Device: name, Err: err}
		}
	}

	d := b.Device(name)
	if d == nil {
		return nil, &serial.OpenError{Device: name, Err: serial.ErrDeviceNotFound}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, &serial.OpenError{Device: name, Err: d.openErr}
	}
	if d.live > 0 {
		return nil, &serial.OpenError{Device: name, Err: serial.ErrDeviceInUse}
	}
	d.live++
	d.opens++
	d.config = config
	return &Port{dev: d, owner: true, timeout: config.ReadTimeout}, nil
}

// Device is one mock serial device.
type Device struct {
	name string

	mu      sync.Mutex
	config  serial.Config
	live    int
	opens   int
	rx      []byte
	tx      bytes.Buffer
	writes  [][]byte
	drains  int
	signals serial.ModemSignals
	samples int

	openErr    error
	readErr    error
	signalErr  error
	dupErr     error
	shortWrite int
	stall      bool

	notify chan struct{}
}

// Feed queues bytes for the next reads.
func (d *Device) Feed(data []byte) {
	d.mu.Lock()
	d.rx = append(d.rx, data...)
	d.mu.Unlock()
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// SetSignals sets the control lines reported to GetModemSignals.
func (d *Device) SetSignals(s serial.ModemSignals) {
	d.mu.Lock()
	d.signals = s
	d.mu.Unlock()
}

// FailReads makes every read after the queued bytes return err.
func (d *Device) FailReads(err error) {
	d.mu.Lock()
	d.readErr = err
	d.mu.Unlock()
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// FailSignals makes GetModemSignals return err until cleared with nil.
func (d *Device) FailSignals(err error) {
	d.mu.Lock()
	d.signalErr = err
	d.mu.Unlock()
}

// FailDuplicate makes Duplicate return err until cleared with nil.
func (d *Device) FailDuplicate(err error) {
	d.mu.Lock()
	d.dupErr = err
	d.mu.Unlock()
}

// FailOpen makes Open return err until cleared with nil.
func (d *Device) FailOpen(err error) {
	d.mu.Lock()
	d.openErr = err
	d.mu.Unlock()
}

// StallWrites makes WriteContext block until its context is done, like a
// printer holding CTS low.
func (d *Device) StallWrites(stall bool) {
	d.mu.Lock()
	d.stall = stall
	d.mu.Unlock()
}

// ShortWrites caps every write at n bytes. Zero disables.
func (d *Device) ShortWrites(n int) {
	d.mu.Lock()
	d.shortWrite = n
	d.mu.Unlock()
}

// Written returns everything written so far.
func (d *Device) Written() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return bytes.Clone(d.tx.Bytes())
}

// Writes returns each write call's accepted bytes.
func (d *Device) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	copy(out, d.writes)
	return out
}

// Drains counts Drain calls.
func (d *Device) Drains() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drains
}

// Live is the number of open owning handles.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Opens counts successful opens.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Samples counts successful GetModemSignals calls.
func (d *Device) Samples() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.samples
}

// Config is the configuration of the last open.
func (d *Device) Config() serial.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// Port is a handle onto a Device.
type Port struct {
	dev     *Device
	owner   bool
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

var _ serial.Port = (*Port)(nil)

var errClosed = serial.ErrPortClosed

func (p *Port) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}
	p.closed = true
	if p.owner {
		p.dev.mu.Lock()
		p.dev.live--
		p.dev.mu.Unlock()
	}
	return nil
}

// Read returns queued bytes, then the configured read error, and otherwise
// waits up to the read timeout and returns 0, nil.
func (p *Port) Read(buf []byte) (int, error) {
	if p.isClosed() {
		return 0, errClosed
	}
	d := p.dev
	for attempt := 0; attempt < 2; attempt++ {
		d.mu.Lock()
		if len(d.rx) > 0 {
			n := copy(buf, d.rx)
			d.rx = d.rx[n:]
			d.mu.Unlock()
			return n, nil
		}
		if d.readErr != nil {
			err := d.readErr
			d.mu.Unlock()
			return 0, err
		}
		d.mu.Unlock()

		if attempt == 0 {
			wait := p.timeout
			if wait <= 0 {
				return 0, nil
			}
			select {
			case <-d.notify:
			case <-time.After(wait):
			}
		}
	}
	return 0, nil
}

func (p *Port) Write(data []byte) (int, error) {
	if p.isClosed() {
		return 0, errClosed
	}
	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(data)
	if d.shortWrite > 0 && n > d.shortWrite {
		n = d.shortWrite
	}
	d.tx.Write(data[:n])
	d.writes = append(d.writes, bytes.Clone(data[:n]))
	return n, nil
}

func (p *Port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	if err := ctxErr(ctx, serial.ErrReadTimeout); err != nil {
		return 0, err
	}
	return p.Read(buf)
}

func (p *Port) WriteContext(ctx context.Context, data []byte) (int, error) {
	p.dev.mu.Lock()
	stall := p.dev.stall
	p.dev.mu.Unlock()
	if stall {
		<-ctx.Done()
	}
	if err := ctxErr(ctx, serial.ErrWriteTimeout); err != nil {
		return 0, err
	}
	return p.Write(data)
}

// ctxErr reports a finished context the way the real ports do.
func ctxErr(ctx context.Context, timeoutErr error) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", timeoutErr, err)
	}
	return err
}

func (p *Port) Drain() error {
	if p.isClosed() {
		return errClosed
	}
	p.dev.mu.Lock()
	p.dev.drains++
	p.dev.mu.Unlock()
	return nil
}

func (p *Port) FlushInput() error {
	if p.isClosed() {
		return errClosed
	}
	p.dev.mu.Lock()
	p.dev.rx = nil
	p.dev.mu.Unlock()
	return nil
}

func (p *Port) FlushOutput() error {
	if p.isClosed() {
		return errClosed
	}
	return nil
}

func (p *Port) GetModemSignals() (serial.ModemSignals, error) {
	if p.isClosed() {
		return serial.ModemSignals{}, errClosed
	}
	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.signalErr != nil {
		return serial.ModemSignals{}, d.signalErr
	}
	d.samples++
	return d.signals, nil
}

func (p *Port) SetRTS(state bool) error {
	if p.isClosed() {
		return errClosed
	}
	p.dev.mu.Lock()
	p.dev.signals.RTS = state
	p.dev.mu.Unlock()
	return nil
}

func (p *Port) SetDTR(state bool) error {
	if p.isClosed() {
		return errClosed
	}
	p.dev.mu.Lock()
	p.dev.signals.DTR = state
	p.dev.mu.Unlock()
	return nil
}

// Duplicate returns a non-owning handle; it does not count as an open.
func (p *Port) Duplicate() (serial.Port, error) {
	if p.isClosed() {
		return nil, errClosed
	}
	p.dev.mu.Lock()
	err := p.dev.dupErr
	p.dev.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &Port{dev: p.dev, timeout: p.timeout}, nil
}

// ErrIO is a convenient hard read error for tests.
var ErrIO = errors.New("input/output error")
