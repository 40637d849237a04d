package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/allbin/kiosk-serial"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateDevices(cfg, ve)
	validateTimings(cfg, ve)
	if cfg.Gateway.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
			ve.Add("gateway.addr %q: %v", cfg.Gateway.Addr, err)
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateDevices(cfg *Config, ve *ValidationError) {
	for i, d := range cfg.Devices {
		if d.Name == "" {
			ve.Add("devices[%d].name is required", i)
		}
		if d.Port == "" {
			ve.Add("devices[%d].port is required", i)
		}
		if d.Baud <= 0 {
			ve.Add("devices[%d].baud must be > 0", i)
		}
		if d.StopBits != 0 && d.StopBits != 1 && d.StopBits != 2 {
			ve.Add("devices[%d].stopbits must be 1 or 2", i)
		}
		if d.DataBits != 0 && (d.DataBits < 5 || d.DataBits > 8) {
			ve.Add("devices[%d].databit must be between 5 and 8", i)
		}
		if _, err := serial.ParseParity(d.Parity); err != nil {
			ve.Add("devices[%d].parity: %v", i, err)
		}
	}
}

func validateTimings(cfg *Config, ve *ValidationError) {
	if cfg.Presence.PollInterval <= 0 {
		ve.Add("presence.poll_interval must be > 0")
	}
	if cfg.Printer.WriteTimeout <= 0 {
		ve.Add("printer.write_timeout must be > 0")
	}
	if cfg.Printer.DPI <= 0 || cfg.Printer.WidthMM <= 0 {
		ve.Add("printer.dpi and printer.width_mm must be > 0")
	}
	timeouts := []struct {
		key string
		d   time.Duration
	}{
		{"reader.read_timeout", cfg.Reader.ReadTimeout},
		{"presence.read_timeout", cfg.Presence.ReadTimeout},
	}
	for _, t := range timeouts {
		if t.d < 0 || t.d > serial.MaxReadTimeout || t.d%(100*time.Millisecond) != 0 {
			ve.Add("%s must be a multiple of 100ms up to %v", t.key, serial.MaxReadTimeout)
		}
	}
}
