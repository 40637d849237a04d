//go:build linux

package session

import (
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/kiosk-serial"
	"github.com/allbin/kiosk-serial/internal/eventbus"
)

func TestFramedReaderOverPTY(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	defer slave.Close()

	ch, err := Open(serial.Open, slave.Name(), serial.WithBaudRate(9600), serial.WithReadTimeout(100*time.Millisecond))
	require.NoError(t, err)

	sink := &recordingSink{}
	reader := &FramedReader{DeviceName: "QR", Sink: sink, Logger: discardLogger()}
	ch.Start(reader.Run, nil)

	_, err = master.Write([]byte("noise\x02PASS-1138\x03"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 3*time.Second, 10*time.Millisecond)
	ev := sink.snapshot()[0]
	assert.Equal(t, eventbus.SerialData, ev.name)
	assert.Equal(t, SerialData{DeviceName: "QR", Data: "PASS-1138"}, ev.payload)

	require.NoError(t, ch.Close())
	h := ch.Health(time.Now())
	assert.False(t, h.IsReading)
	assert.NotZero(t, h.ReadCount)
}
