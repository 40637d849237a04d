/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/config"
	"github.com/allbin/kiosk-serial/internal/printer"
)

func TestParseHexString(t *testing.T) {
	got, err := parseHexString("0x48 65 6c6C6f")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), got)

	_, err = parseHexString("abc")
	assert.Error(t, err)
	_, err = parseHexString("zz")
	assert.Error(t, err)
}

func TestFrame(t *testing.T) {
	assert.Equal(t, []byte{0x02, 'A', 'B', 0x03}, frame([]byte("AB")))
	assert.Equal(t, []byte{0x02, 0x03}, frame(nil))
}

func TestFilterPorts(t *testing.T) {
	infos := []serial.PortInfo{
		{Name: "ttyUSB0", Path: "/dev/ttyUSB0", IsUSB: true},
		{Name: "ttyS0", Path: "/dev/ttyS0"},
		{Name: "ttyAMA0", Path: "/dev/ttyAMA0"},
	}
	assert.Len(t, filterPorts(infos, ""), 3)
	assert.Equal(t, "/dev/ttyUSB0", filterPorts(infos, "usb")[0].Path)
	assert.Equal(t, "/dev/ttyS0", filterPorts(infos, "standard")[0].Path)
	assert.Equal(t, "/dev/ttyAMA0", filterPorts(infos, "arm")[0].Path)
	assert.Empty(t, filterPorts(infos, "bluetooth"))
}

func TestRenderTableShowsAssignment(t *testing.T) {
	infos := []serial.PortInfo{{Name: "ttyUSB1", Path: "/dev/ttyUSB1", VendorID: "0403", ProductID: "6001", Product: "FT232R"}}
	out := renderTable(infos, []config.DeviceConfig{{Name: "HUMAN_SENSOR", Port: "ttyusb1"}})
	assert.Contains(t, out, "Found 1 serial port(s)")
	assert.Contains(t, out, "0403:6001")
	assert.Contains(t, out, "HUMAN_SENSOR")
	assert.Contains(t, out, "USB Serial")
}

func TestReadJobAndPrinterDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"commands":[{"type":"text","value":"hej"},{"type":"full_cut"}]}`), 0o644))

	job, err := readJob(path)
	require.NoError(t, err)
	require.Len(t, job.Commands, 2)
	assert.Equal(t, printer.Text, job.Commands[0].Type)

	c := &config.Config{Devices: []config.DeviceConfig{{Name: "printer", Port: "/dev/ttyUSB2", Baud: 115200}}}
	applyPrinterDefaults(&job, c, "", 0)
	assert.Equal(t, "/dev/ttyUSB2", job.Port)
	assert.Equal(t, 115200, job.Baud)

	applyPrinterDefaults(&job, c, "/dev/ttyS4", 9600)
	assert.Equal(t, "/dev/ttyS4", job.Port)
	assert.Equal(t, 9600, job.Baud)

	_, err = readJob(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
