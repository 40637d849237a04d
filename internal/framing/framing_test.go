package framing

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(f *Buffer, data []byte) []string {
	var msgs []string
	for _, b := range data {
		if msg, ok := f.Feed(b); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func TestWellFormedFrame(t *testing.T) {
	f := New()
	msgs := feedAll(f, []byte("\x02QR-12345\x03"))
	assert.Equal(t, []string{"QR-12345"}, msgs)
	assert.False(t, f.Collecting())
	assert.Zero(t, f.Len())
}

func TestSTXRestartsFrame(t *testing.T) {
	f := New()
	msgs := feedAll(f, []byte{STX, 'A', STX, 'B', ETX})
	assert.Equal(t, []string{"B"}, msgs)
}

func TestETXWhileIdle(t *testing.T) {
	f := New()
	msgs := feedAll(f, []byte{ETX, 'x', 'y', ETX})
	assert.Empty(t, msgs)
	assert.False(t, f.Collecting())
}

func TestEmptyFrameEmitsNothing(t *testing.T) {
	f := New()
	assert.Empty(t, feedAll(f, []byte{STX, ETX}))
	assert.False(t, f.Collecting())
}

func TestLossyDecoding(t *testing.T) {
	f := New()
	msgs := feedAll(f, []byte{STX, 'a', 0xff, 0xfe, 'b', ETX})
	require.Len(t, msgs, 1)
	assert.Equal(t, "a\uFFFD\uFFFDb", msgs[0])
}

func TestLossyDecodingSubsequences(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"valid multibyte", []byte("kön 東"), "kön 東"},
		{"adjacent invalid", []byte{'A', 0xff, 0xfe, 'B'}, "A\uFFFD\uFFFDB"},
		{"truncated three byte", []byte{'A', 0xe2, 0x82, 'B'}, "A\uFFFDB"},
		{"truncated at end", []byte{'A', 0xf0, 0x9f, 0x98}, "A\uFFFD"},
		{"lone continuation", []byte{0x80, 0x80}, "\uFFFD\uFFFD"},
		{"surrogate", []byte{0xed, 0xa0, 0x80}, "\uFFFD\uFFFD\uFFFD"},
		{"overlong", []byte{0xc0, 0xaf}, "\uFFFD\uFFFD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()
			msgs := feedAll(f, append(append([]byte{STX}, tt.in...), ETX))
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.want, msgs[0])
		})
	}
}

func TestMultipleFramesWithNoise(t *testing.T) {
	f := New()
	msgs := feedAll(f, []byte("noise\x02one\x03junk\x02two\x03\r\n"))
	assert.Equal(t, []string{"one", "two"}, msgs)
}

func TestOverflowDropsFrame(t *testing.T) {
	f := New()
	data := append([]byte{STX}, bytes.Repeat([]byte{'x'}, MaxBufferSize)...)
	assert.Empty(t, feedAll(f, data))
	assert.Equal(t, MaxBufferSize, f.Len())

	// One more payload byte overflows: frame and byte are dropped.
	_, ok := f.Feed('y')
	assert.False(t, ok)
	assert.False(t, f.Collecting())
	assert.Zero(t, f.Len())

	// The trailing ETX of the oversized frame is ignored.
	_, ok = f.Feed(ETX)
	assert.False(t, ok)

	assert.Equal(t, []string{"ok"}, feedAll(f, []byte("\x02ok\x03")))
}

func TestFrameAtExactCapacity(t *testing.T) {
	f := New()
	payload := bytes.Repeat([]byte{'z'}, MaxBufferSize)
	data := append(append([]byte{STX}, payload...), ETX)
	msgs := feedAll(f, data)
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0], MaxBufferSize)
}

func TestNeverExceedsMaxBuffer(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	f := New()
	for i := 0; i < 200000; i++ {
		var b byte
		switch rng.Intn(5000) {
		case 0:
			b = STX
		case 1:
			b = ETX
		default:
			b = byte(rng.Intn(256))
		}
		f.Feed(b)
		if f.Len() > MaxBufferSize {
			t.Fatalf("buffer grew to %d bytes at step %d", f.Len(), i)
		}
		if !f.Collecting() && f.Len() != 0 {
			t.Fatalf("idle buffer holds %d bytes at step %d", f.Len(), i)
		}
	}
}

func TestRandomWellFormedFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(300)
		payload := make([]byte, n)
		for j := range payload {
			b := byte(rng.Intn(256))
			for b == STX || b == ETX {
				b = byte(rng.Intn(256))
			}
			payload[j] = b
		}

		f := New()
		msgs := feedAll(f, append(append([]byte{STX}, payload...), ETX))
		require.Len(t, msgs, 1)
		assert.Equal(t, strings.ToValidUTF8(string(payload), "�"), msgs[0])
	}
}

func TestCheckTimeout(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewWithClock(DefaultTimeout, func() time.Time { return clock })

	feedAll(f, []byte("\x02partial"))
	require.True(t, f.Collecting())

	assert.False(t, f.CheckTimeout(clock.Add(DefaultTimeout)))
	assert.True(t, f.Collecting())

	assert.True(t, f.CheckTimeout(clock.Add(DefaultTimeout+time.Millisecond)))
	assert.False(t, f.Collecting())
	assert.Zero(t, f.Len())

	// ETX of the stale frame is ignored, the next frame completes.
	clock = clock.Add(10 * time.Second)
	assert.Equal(t, []string{"fresh"}, feedAll(f, []byte("rest\x03\x02fresh\x03")))
}

func TestCheckTimeoutIdle(t *testing.T) {
	f := New()
	assert.False(t, f.CheckTimeout(time.Now().Add(time.Hour)))
}

func TestSTXResetsTimer(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewWithClock(time.Second, func() time.Time { return clock })

	feedAll(f, []byte("\x02a"))
	clock = clock.Add(900 * time.Millisecond)
	f.Feed(STX)

	assert.False(t, f.CheckTimeout(clock.Add(500*time.Millisecond)))
	assert.True(t, f.Collecting())
}
