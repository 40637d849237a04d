package kiosk

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/allbin/kiosk-serial/internal/session"
)

// LogHealth writes one line per slot with its current health.
func (s *Service) LogHealth() {
	for name, health := range map[string]func() (session.Health, error){
		SlotReader:   s.SerialHealth,
		SlotPresence: s.PresenceHealth,
	} {
		h, err := health()
		if err != nil {
			s.logger.Warn("health snapshot failed", "slot", name, "error", err)
			continue
		}
		s.logger.Info("serial health",
			"slot", name,
			"port", h.Device,
			"connected", h.IsConnected,
			"reading", h.IsReading,
			"uptime_seconds", h.UptimeSeconds,
			"reads", h.ReadCount,
			"errors", h.ErrorCount,
		)
	}
}

// StartHealthLog calls LogHealth on a cron schedule (standard five
// fields or descriptors such as "@every 1m"). The returned function stops
// the schedule and waits for a running call to finish.
func (s *Service) StartHealthLog(schedule string) (func(context.Context), error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, s.LogHealth); err != nil {
		return nil, fmt.Errorf("health log schedule %q: %w", schedule, err)
	}
	c.Start()
	return func(ctx context.Context) {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}, nil
}
