// Package eventbus broadcasts named device events to any number of consumers.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event names emitted by the serial sessions.
const (
	SerialData       = "serial-data"
	HumanSensorState = "human-sensor-state"
	SessionEnded     = "serial-session-ended"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("event bus closed")

// Event is one broadcast notification. Payload is the JSON encoding of the
// value passed to Emit.
type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Handler receives events. It runs on its own goroutine.
type Handler func(ctx context.Context, event Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an in-process, goroutine-safe event bus.
type Bus struct {
	mu      sync.RWMutex
	named   map[string][]subscription
	allSubs []subscription
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  bool // guarded by mu
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		named:  make(map[string][]subscription),
		logger: logger,
	}
}

// NewEvent encodes payload and stamps the event with a fresh ULID.
func NewEvent(name string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Event{
		ID:        ulid.Make().String(),
		Name:      name,
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}

// Emit encodes payload and publishes it. The error reports an encoding
// failure or a closed bus; delivery itself is fire-and-forget.
func (b *Bus) Emit(ctx context.Context, name string, payload any) error {
	event, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	if !b.publish(ctx, event) {
		return ErrClosed
	}
	return nil
}

// Publish fans out an event to matching named subscribers and all-event subscribers.
// Each handler is invoked in its own goroutine. Panicking handlers are recovered.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if !b.publish(ctx, event) {
		b.logger.Debug("event dropped after close", "event", event.Name)
	}
}

// publish reports false when the bus is closed. The handler goroutines are
// added to wg under the same lock Close takes, so Close never waits on a
// group that is still growing.
func (b *Bus) publish(ctx context.Context, event Event) bool {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return false
	}
	subs := make([]subscription, 0, len(b.named[event.Name])+len(b.allSubs))
	subs = append(subs, b.named[event.Name]...)
	subs = append(subs, b.allSubs...)
	b.wg.Add(len(subs))
	b.mu.RUnlock()

	for _, sub := range subs {
		go b.dispatch(ctx, event, sub)
	}
	return true
}

func (b *Bus) dispatch(ctx context.Context, event Event, sub subscription) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", event.Name,
				"panic", r,
			)
		}
	}()
	sub.handler(ctx, event)
}

// Subscribe registers a handler for one event name.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(name string, handler Handler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.named[name] = append(b.named[name], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.named[name]
		for i, s := range subs {
			if s.id == id {
				b.named[name] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler Handler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.allSubs {
			if s.id == id {
				b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

// Close prevents new publishes and waits for all in-flight handlers to finish.
// Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
