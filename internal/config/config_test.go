package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
machine_id: KIOSK-07
devices:
  - name: QR
    port: /dev/ttyUSB0
    baud: 9600
    stopbits: 1
    databit: 8
    parity: 0
  - name: HUMAN_SENSOR
    port: /dev/ttyUSB1
    baud: 9600
  - name: printer
    port: /dev/ttyUSB2
    baud: 115200
    parity: even
gateway:
  addr: 127.0.0.1:9000
  token: secret
health_log: ""
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiosk-serial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "KIOSK-07", cfg.MachineID)
	require.Len(t, cfg.Devices, 3)
	assert.Equal(t, DeviceConfig{Name: "QR", Port: "/dev/ttyUSB0", Baud: 9600, StopBits: 1, DataBits: 8, Parity: "0"}, cfg.Devices[0])
	assert.Equal(t, "even", cfg.Devices[2].Parity)

	assert.Equal(t, "127.0.0.1:9000", cfg.Gateway.Addr)
	assert.Equal(t, "secret", cfg.Gateway.Token)
	assert.Equal(t, "", cfg.HealthLog)
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "machine_id: X\n"))
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.Reader.ReadTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Presence.PollInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Presence.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Printer.WriteTimeout)
	assert.Equal(t, 180, cfg.Printer.DPI)
	assert.Equal(t, 80, cfg.Printer.WidthMM)
	assert.Equal(t, "127.0.0.1:8765", cfg.Gateway.Addr)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "@every 1m", cfg.HealthLog)
	assert.True(t, cfg.Autostart)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("KIOSK_SERIAL_MACHINE_ID", "FROM-ENV")
	t.Setenv("KIOSK_SERIAL_GATEWAY_ADDR", "0.0.0.0:1234")

	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "FROM-ENV", cfg.MachineID)
	assert.Equal(t, "0.0.0.0:1234", cfg.Gateway.Addr)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDeviceLookup(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	d, ok := cfg.Device("PRINTER")
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyUSB2", d.Port)

	_, ok = cfg.Device("RFID")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	body := `
devices:
  - name: ""
    port: ""
    baud: 0
    stopbits: 3
    databit: 9
    parity: weird
presence:
  poll_interval: 0s
reader:
  read_timeout: 150ms
gateway:
  addr: nonsense
`
	_, err := LoadFile(writeConfig(t, body))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 9)
	assert.Contains(t, err.Error(), "devices[0].parity")
	assert.Contains(t, err.Error(), "reader.read_timeout")
}
