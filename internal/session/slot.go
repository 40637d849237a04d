package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrLockRecovered is returned by the slot operation that panicked. The slot
// stays usable afterwards.
var ErrLockRecovered = errors.New("recovered from panic inside slot")

// Slot holds at most one active Channel of one kind. Every operation runs
// under the slot's mutex; a panic inside one is recovered so later calls
// still get the lock and the last stored channel.
type Slot struct {
	name      string
	logger    *slog.Logger
	createdAt time.Time

	mu sync.Mutex
	ch *Channel
}

// NewSlot returns an empty slot.
func NewSlot(name string, logger *slog.Logger) *Slot {
	return &Slot{name: name, logger: logger, createdAt: time.Now()}
}

// Name identifies the slot in logs and events.
func (s *Slot) Name() string { return s.name }

func (s *Slot) locked(op string, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("slot lock recovered", "slot", s.name, "op", op, "panic", r)
			err = fmt.Errorf("%s %s: %w: %v", s.name, op, ErrLockRecovered, r)
		}
	}()
	return fn()
}

// Replace stops and drops the current channel, then stores the one returned
// by open. The old worker has exited and its handle is closed before open
// runs. When open fails the slot is left empty.
func (s *Slot) Replace(open func() (*Channel, error)) error {
	return s.locked("start", func() error {
		s.stopLocked()

		ch, err := open()
		if err != nil {
			return err
		}
		s.ch = ch
		s.logger.Info("session started", "slot", s.name, "port", ch.Device())
		return nil
	})
}

// Stop cancels the worker, joins it and closes the handle. Stopping an
// empty slot is a no-op.
func (s *Slot) Stop() error {
	return s.locked("stop", func() error {
		s.stopLocked()
		return nil
	})
}

func (s *Slot) stopLocked() {
	if s.ch == nil {
		return
	}
	ch := s.ch
	s.ch = nil
	if err := ch.Close(); err != nil {
		s.logger.Warn("error closing serial port", "slot", s.name, "port", ch.Device(), "error", err)
	}
	s.logger.Info("session stopped", "slot", s.name, "port", ch.Device())
}

// Health reports the active channel, or an idle snapshot whose uptime runs
// from slot creation.
func (s *Slot) Health() (Health, error) {
	var h Health
	err := s.locked("health", func() error {
		now := time.Now()
		if s.ch == nil {
			h = Health{UptimeSeconds: uint64(max(now.Sub(s.createdAt), 0) / time.Second)}
			return nil
		}
		h = s.ch.Health(now)
		return nil
	})
	return h, err
}

// Active reports whether a channel is stored.
func (s *Slot) Active() bool {
	var active bool
	_ = s.locked("active", func() error {
		active = s.ch != nil
		return nil
	})
	return active
}
