// Package kiosk is the serial registry: the framed-reading slot, the
// presence slot, and the commands the UI issues against them.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/eventbus"
	"github.com/allbin/kiosk-serial/internal/printer"
	"github.com/allbin/kiosk-serial/internal/session"
)

// Slot names, as reported in logs and session-ended events.
const (
	SlotReader   = "reader"
	SlotPresence = "presence"
)

var ErrInvalidRequest = errors.New("invalid request")

// Options wires a Service. Zero durations take the package defaults; a
// negative ReadTimeout selects non-blocking reads.
type Options struct {
	Open      serial.Opener
	ListPorts func() ([]string, error)
	Sink      session.Sink
	Logger    *slog.Logger
	Printer   *printer.Printer

	ReadTimeout         time.Duration
	PresenceInterval    time.Duration
	PresenceReadTimeout time.Duration
}

// ReadRequest starts framed reading. StopBits and Parity default to 1 and none.
type ReadRequest struct {
	Port       string        `json:"port"`
	Baud       int           `json:"baud"`
	DeviceName string        `json:"device_name"`
	StopBits   int           `json:"stop_bits,omitempty"`
	Parity     serial.Parity `json:"parity,omitempty"`
}

// PresenceRequest starts presence monitoring.
type PresenceRequest struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// PrintRequest is one print job.
type PrintRequest struct {
	Port     string            `json:"port"`
	Baud     int               `json:"baud"`
	Commands []printer.Command `json:"commands"`
}

// SessionEnded is the payload of a serial-session-ended event.
type SessionEnded struct {
	Slot       string `json:"slot"`
	DeviceName string `json:"device_name,omitempty"`
	Port       string `json:"port"`
	Reason     string `json:"reason"`
	Error      string `json:"error,omitempty"`
}

// Service owns the two slots. All methods are safe for concurrent use.
type Service struct {
	opts     Options
	logger   *slog.Logger
	reader   *session.Slot
	presence *session.Slot
}

// New returns a Service with both slots empty.
func New(opts Options) *Service {
	if opts.Open == nil {
		opts.Open = serial.Open
	}
	if opts.ListPorts == nil {
		opts.ListPorts = serial.ListPorts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sink == nil {
		opts.Sink = discardSink{}
	}
	if opts.ReadTimeout < 0 {
		opts.ReadTimeout = 0
	} else if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	if opts.PresenceInterval <= 0 {
		opts.PresenceInterval = session.DefaultPollInterval
	}
	if opts.PresenceReadTimeout <= 0 {
		opts.PresenceReadTimeout = 100 * time.Millisecond
	}
	if opts.Printer == nil {
		opts.Printer = printer.New(opts.Open, opts.Logger)
	}

	return &Service{
		opts:     opts,
		logger:   opts.Logger,
		reader:   session.NewSlot(SlotReader, opts.Logger),
		presence: session.NewSlot(SlotPresence, opts.Logger),
	}
}

// ListPorts returns the serial ports on this machine, sorted.
func (s *Service) ListPorts() ([]string, error) {
	ports, err := s.opts.ListPorts()
	if err != nil {
		s.logger.Error("failed to list ports", "error", err)
		return nil, err
	}
	sort.Strings(ports)
	return ports, nil
}

// StartFramedReading replaces the reader slot with a new session on req.Port.
func (s *Service) StartFramedReading(req ReadRequest) error {
	if req.Port == "" || req.Baud <= 0 {
		return fmt.Errorf("%w: port and baud are required", ErrInvalidRequest)
	}
	stopBits := req.StopBits
	if stopBits == 0 {
		stopBits = 1
	}

	s.logger.Info("starting framed reading", "port", req.Port, "device", req.DeviceName)
	return s.reader.Replace(func() (*session.Channel, error) {
		ch, err := session.Open(s.opts.Open, req.Port,
			serial.WithBaudRate(req.Baud),
			serial.WithDataBits(8),
			serial.WithStopBits(stopBits),
			serial.WithParity(req.Parity),
			serial.WithReadTimeout(s.opts.ReadTimeout),
		)
		if err != nil {
			s.logger.Error("failed to open port", "port", req.Port, "error", err)
			return nil, err
		}

		reader := &session.FramedReader{
			DeviceName: req.DeviceName,
			Sink:       s.opts.Sink,
			Logger:     s.logger,
		}
		ch.Start(reader.Run, s.onExit(SlotReader, req.DeviceName, req.Port))
		return ch, nil
	})
}

// StopFramedReading stops the reader slot. It is a no-op when idle.
func (s *Service) StopFramedReading() error {
	s.logger.Info("stopping framed reading")
	return s.reader.Stop()
}

// SerialHealth reports the reader slot.
func (s *Service) SerialHealth() (session.Health, error) {
	return s.reader.Health()
}

// PresenceHealth reports the presence slot.
func (s *Service) PresenceHealth() (session.Health, error) {
	return s.presence.Health()
}

// StartPresenceMonitoring replaces the presence slot with a new session.
func (s *Service) StartPresenceMonitoring(req PresenceRequest) error {
	if req.Port == "" || req.Baud <= 0 {
		return fmt.Errorf("%w: port and baud are required", ErrInvalidRequest)
	}

	s.logger.Info("starting presence monitoring", "port", req.Port)
	return s.presence.Replace(func() (*session.Channel, error) {
		ch, err := session.Open(s.opts.Open, req.Port,
			serial.WithBaudRate(req.Baud),
			serial.WithReadTimeout(s.opts.PresenceReadTimeout),
		)
		if err != nil {
			s.logger.Error("failed to open presence port", "port", req.Port, "error", err)
			return nil, err
		}

		mon := &session.PresenceMonitor{
			Sink:     s.opts.Sink,
			Logger:   s.logger,
			Interval: s.opts.PresenceInterval,
		}
		if err := mon.Attach(ch); err != nil {
			s.logger.Error("failed to attach presence monitor", "port", req.Port, "error", err)
			if cerr := ch.Close(); cerr != nil {
				s.logger.Warn("error closing serial port", "port", req.Port, "error", cerr)
			}
			return nil, err
		}
		ch.Start(mon.Run, s.onExit(SlotPresence, "", req.Port))
		return ch, nil
	})
}

// StopPresenceMonitoring stops the presence slot. It is a no-op when idle.
func (s *Service) StopPresenceMonitoring() error {
	s.logger.Info("stopping presence monitoring")
	return s.presence.Stop()
}

// Print runs a print job on its own handle. It does not touch either slot;
// printing on a port a slot holds fails with serial.ErrDeviceInUse.
func (s *Service) Print(ctx context.Context, req PrintRequest) error {
	if req.Port == "" || req.Baud <= 0 {
		return fmt.Errorf("%w: port and baud are required", ErrInvalidRequest)
	}
	return s.opts.Printer.Print(ctx, req.Port, req.Baud, req.Commands)
}

// Close stops both slots.
func (s *Service) Close() error {
	return errors.Join(s.reader.Stop(), s.presence.Stop())
}

func (s *Service) onExit(slot, deviceName, port string) func(error) {
	return func(err error) {
		ended := SessionEnded{Slot: slot, DeviceName: deviceName, Port: port, Reason: "stopped"}
		if err != nil {
			ended.Reason = "io-error"
			ended.Error = err.Error()
		}
		if emitErr := s.opts.Sink.Emit(context.Background(), eventbus.SessionEnded, ended); emitErr != nil {
			s.logger.Debug("failed to emit session end", "slot", slot, "error", emitErr)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(context.Context, string, any) error { return nil }
