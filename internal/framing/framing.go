// Package framing assembles STX/ETX delimited messages out of a byte stream.
package framing

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	STX = 0x02
	ETX = 0x03

	// MaxBufferSize is the most payload bytes a frame may carry.
	MaxBufferSize = 4096
	// DefaultTimeout is how long a started frame may stay open.
	DefaultTimeout = 5 * time.Second
)

// Buffer is the framing state machine. It does no I/O and is not safe for
// concurrent use; each reader owns one.
type Buffer struct {
	collecting bool
	bytes      []byte
	startedAt  time.Time
	timeout    time.Duration

	now func() time.Time
}

// New returns an idle buffer using DefaultTimeout.
func New() *Buffer {
	return NewWithTimeout(DefaultTimeout)
}

// NewWithTimeout returns an idle buffer that drops frames left open longer than timeout.
func NewWithTimeout(timeout time.Duration) *Buffer {
	return NewWithClock(timeout, time.Now)
}

// NewWithClock is NewWithTimeout with the clock used to stamp frame starts.
// Pass the same clock that feeds CheckTimeout.
func NewWithClock(timeout time.Duration, now func() time.Time) *Buffer {
	return &Buffer{
		bytes:   make([]byte, 0, 256),
		timeout: timeout,
		now:     now,
	}
}

// Feed processes one byte and returns the decoded message when b closes a
// non-empty frame.
func (f *Buffer) Feed(b byte) (string, bool) {
	switch {
	case b == STX:
		f.bytes = f.bytes[:0]
		f.collecting = true
		f.startedAt = f.now()
	case !f.collecting:
	case b == ETX:
		var msg string
		ok := len(f.bytes) > 0
		if ok {
			msg = decodeLossy(f.bytes)
		}
		f.reset()
		return msg, ok
	case len(f.bytes) == MaxBufferSize:
		f.reset()
	default:
		f.bytes = append(f.bytes, b)
	}
	return "", false
}

// CheckTimeout drops an open frame that started more than the timeout before
// now. It reports whether a frame was dropped.
func (f *Buffer) CheckTimeout(now time.Time) bool {
	if !f.collecting || now.Sub(f.startedAt) <= f.timeout {
		return false
	}
	f.reset()
	return true
}

// Collecting reports whether a frame is open.
func (f *Buffer) Collecting() bool { return f.collecting }

// Len is the number of payload bytes buffered for the open frame.
func (f *Buffer) Len() int { return len(f.bytes) }

func (f *Buffer) reset() {
	f.collecting = false
	f.bytes = f.bytes[:0]
}

// decodeLossy decodes p as UTF-8, writing one U+FFFD for every maximal
// invalid subsequence. Adjacent invalid bytes are replaced one by one, while
// a truncated multi-byte sequence becomes a single replacement.
func decodeLossy(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	var sb strings.Builder
	sb.Grow(len(p) + 8)
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			p = p[invalidPrefix(p):]
			continue
		}
		sb.Write(p[:size])
		p = p[size:]
	}
	return sb.String()
}

// invalidPrefix returns the length of the maximal prefix of p that starts a
// well-formed sequence without completing it. It is at least 1.
func invalidPrefix(p []byte) int {
	lo, hi := byte(0x80), byte(0xbf)
	var need int
	switch b := p[0]; {
	case b >= 0xc2 && b <= 0xdf:
		need = 1
	case b == 0xe0:
		need, lo = 2, 0xa0
	case b == 0xed:
		need, hi = 2, 0x9f
	case b >= 0xe1 && b <= 0xef:
		need = 2
	case b == 0xf0:
		need, lo = 3, 0x90
	case b == 0xf4:
		need, hi = 3, 0x8f
	case b >= 0xf1 && b <= 0xf3:
		need = 3
	default:
		return 1
	}
	n := 1
	for ; n <= need && n < len(p); n++ {
		if p[n] < lo || p[n] > hi {
			break
		}
		lo, hi = 0x80, 0xbf
	}
	return n
}
