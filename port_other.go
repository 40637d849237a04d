//go:build !linux

package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"

	bugst "go.bug.st/serial"
)

// port wraps a go.bug.st/serial handle on platforms without the termios backend
type port struct {
	mu     *sync.RWMutex
	sp     bugst.Port
	device string
	closed bool
	// owner is false for handles produced by Duplicate; they never close sp
	owner bool
	rts   *bool
	dtr   *bool
}

var _ Port = (*port)(nil)

func checkBaudRate(rate int) error {
	if rate <= 0 {
		return ErrInvalidBaudRate
	}
	return nil
}

func toMode(config Config) *bugst.Mode {
	mode := &bugst.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		StopBits: bugst.OneStopBit,
	}
	if config.StopBits == 2 {
		mode.StopBits = bugst.TwoStopBits
	}
	switch config.Parity {
	case ParityOdd:
		mode.Parity = bugst.OddParity
	case ParityEven:
		mode.Parity = bugst.EvenParity
	case ParityMark:
		mode.Parity = bugst.MarkParity
	case ParitySpace:
		mode.Parity = bugst.SpaceParity
	default:
		mode.Parity = bugst.NoParity
	}
	return mode
}

func classifyPortError(err error) error {
	var pe *bugst.PortError
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code() {
	case bugst.PortNotFound:
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, pe)
	case bugst.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, pe)
	case bugst.PortBusy:
		return fmt.Errorf("%w: %v", ErrDeviceInUse, pe)
	case bugst.InvalidSpeed:
		return fmt.Errorf("%w: %v", ErrInvalidBaudRate, pe)
	case bugst.InvalidDataBits, bugst.InvalidParity, bugst.InvalidStopBits:
		return fmt.Errorf("%w: %v", ErrInvalidConfig, pe)
	case bugst.PortClosed:
		return ErrPortClosed
	default:
		return err
	}
}

// Open opens a serial port with the given device path and options
func Open(device string, opts ...Option) (Port, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, &OpenError{Device: device, Err: err}
		}
	}

	sp, err := bugst.Open(device, toMode(config))
	if err != nil {
		return nil, &OpenError{Device: device, Err: classifyPortError(err)}
	}

	if err := sp.SetReadTimeout(config.ReadTimeout); err != nil {
		sp.Close()
		return nil, &OpenError{Device: device, Err: classifyPortError(err)}
	}

	p := &port{mu: &sync.RWMutex{}, sp: sp, device: device, owner: true}
	if config.InitialRTS != nil {
		if err := p.SetRTS(*config.InitialRTS); err != nil {
			sp.Close()
			return nil, &OpenError{Device: device, Err: fmt.Errorf("set initial RTS: %w", err)}
		}
	}
	if config.InitialDTR != nil {
		if err := p.SetDTR(*config.InitialDTR); err != nil {
			sp.Close()
			return nil, &OpenError{Device: device, Err: fmt.Errorf("set initial DTR: %w", err)}
		}
	}
	return p, nil
}

func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	if !p.owner {
		return nil
	}
	return p.sp.Close()
}

func (p *port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	n, err := p.sp.Read(buf)
	return n, classifyPortError(err)
}

func (p *port) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	n, err := p.sp.Write(data)
	return n, classifyPortError(err)
}

func (p *port) WriteContext(ctx context.Context, data []byte) (int, error) {
	return withContext(ctx, ErrWriteTimeout, func() (int, error) { return p.Write(data) })
}

func (p *port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	return withContext(ctx, ErrReadTimeout, func() (int, error) { return p.Read(buf) })
}

func (p *port) GetModemSignals() (ModemSignals, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ModemSignals{}, ErrPortClosed
	}
	bits, err := p.sp.GetModemStatusBits()
	if err != nil {
		return ModemSignals{}, classifyPortError(err)
	}
	signals := ModemSignals{CTS: bits.CTS, DSR: bits.DSR, RI: bits.RI, DCD: bits.DCD}
	// go.bug.st/serial cannot read back output lines; report the last value set
	if p.rts != nil {
		signals.RTS = *p.rts
	}
	if p.dtr != nil {
		signals.DTR = *p.dtr
	}
	return signals, nil
}

func (p *port) SetRTS(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	if err := p.sp.SetRTS(state); err != nil {
		return classifyPortError(err)
	}
	p.rts = &state
	return nil
}

func (p *port) SetDTR(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	if err := p.sp.SetDTR(state); err != nil {
		return classifyPortError(err)
	}
	p.dtr = &state
	return nil
}

// Duplicate returns a non-owning view that shares the parent's lock.
func (p *port) Duplicate() (Port, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPortClosed
	}
	return &port{mu: p.mu, sp: p.sp, device: p.device}, nil
}

func (p *port) Drain() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return classifyPortError(p.sp.Drain())
}

func (p *port) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return classifyPortError(p.sp.ResetInputBuffer())
}

func (p *port) FlushOutput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return classifyPortError(p.sp.ResetOutputBuffer())
}
