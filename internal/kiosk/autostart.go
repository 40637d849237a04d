package kiosk

import (
	"path/filepath"
	"strings"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/config"
)

// AutostartResult records what Autostart did with each configured device.
type AutostartResult struct {
	Presence string            `json:"presence,omitempty"`
	Reader   string            `json:"reader,omitempty"`
	Skipped  map[string]string `json:"skipped,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// MatchPort finds the listed port a configured port refers to. Names are
// compared case-insensitively, either as full paths or as base names.
func MatchPort(configured string, listed []string) (string, bool) {
	for _, p := range listed {
		if strings.EqualFold(p, configured) || strings.EqualFold(filepath.Base(p), filepath.Base(configured)) {
			return p, true
		}
	}
	return "", false
}

// Autostart begins the sessions the configured devices call for. The
// HUMAN_SENSOR device gets presence monitoring; the first other device that
// is not the printer gets framed reading. Devices whose port is not present
// are skipped. Failures are recorded and logged, never returned.
func (s *Service) Autostart(devices []config.DeviceConfig) AutostartResult {
	res := AutostartResult{Skipped: map[string]string{}, Errors: map[string]string{}}

	listed, err := s.ListPorts()
	if err != nil {
		res.Errors["list_ports"] = err.Error()
		return res
	}

	for _, d := range devices {
		port, ok := MatchPort(d.Port, listed)
		if !ok {
			s.logger.Warn("configured device not connected", "device", d.Name, "port", d.Port)
			res.Skipped[d.Name] = "port not found"
			continue
		}

		switch {
		case strings.EqualFold(d.Name, config.DeviceHumanSensor):
			if res.Presence != "" {
				res.Skipped[d.Name] = "presence already started"
				continue
			}
			if err := s.StartPresenceMonitoring(PresenceRequest{Port: port, Baud: d.Baud}); err != nil {
				res.Errors[d.Name] = err.Error()
				continue
			}
			res.Presence = d.Name

		case strings.EqualFold(d.Name, config.DevicePrinter):
			res.Skipped[d.Name] = "printer opens per job"

		default:
			if res.Reader != "" {
				res.Skipped[d.Name] = "reader slot already in use by " + res.Reader
				continue
			}
			parity, _ := serial.ParseParity(d.Parity)
			err := s.StartFramedReading(ReadRequest{
				Port:       port,
				Baud:       d.Baud,
				DeviceName: d.Name,
				StopBits:   d.StopBits,
				Parity:     parity,
			})
			if err != nil {
				res.Errors[d.Name] = err.Error()
				continue
			}
			res.Reader = d.Name
		}
	}

	s.logger.Info("autostart finished", "reader", res.Reader, "presence", res.Presence,
		"skipped", len(res.Skipped), "errors", len(res.Errors))
	return res
}
