package serial

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	got := DefaultConfig()
	want := Config{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
		ReadTimeout: 100 * time.Millisecond,
		Exclusive:   true,
	}
	if got.BaudRate != want.BaudRate || got.DataBits != want.DataBits || got.StopBits != want.StopBits ||
		got.Parity != want.Parity || got.FlowControl != want.FlowControl ||
		got.ReadTimeout != want.ReadTimeout || got.Exclusive != want.Exclusive {
		t.Errorf("DefaultConfig() = %+v, want %+v", got, want)
	}
}

func TestDeviceLineSetups(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		check func(Config) bool
	}{
		{
			name:  "barcode reader 9600 8E2",
			opts:  []Option{WithBaudRate(9600), WithDataBits(8), WithStopBits(2), WithParity(ParityEven)},
			check: func(c Config) bool { return c.BaudRate == 9600 && c.StopBits == 2 && c.Parity == ParityEven },
		},
		{
			name:  "presence sensor 7 data bits",
			opts:  []Option{WithBaudRate(9600), WithDataBits(7)},
			check: func(c Config) bool { return c.DataBits == 7 },
		},
		{
			name:  "printer with hardware flow control",
			opts:  []Option{WithFlowControl(FlowControlRTSCTS)},
			check: func(c Config) bool { return c.FlowControl == FlowControlRTSCTS && c.BaudRate == 115200 },
		},
		{
			name:  "shared bench port",
			opts:  []Option{WithExclusive(false)},
			check: func(c Config) bool { return !c.Exclusive },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			for _, opt := range tt.opts {
				if err := opt(&config); err != nil {
					t.Fatalf("option failed: %v", err)
				}
			}
			if !tt.check(config) {
				t.Errorf("unexpected config %+v", config)
			}
		})
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"negative baud", WithBaudRate(-1), ErrInvalidBaudRate},
		{"nine data bits", WithDataBits(9), ErrInvalidConfig},
		{"three stop bits", WithStopBits(3), ErrInvalidConfig},
		{"unknown parity", WithParity(Parity(9)), ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			if err := tt.opt(&config); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenErrorUnwrap(t *testing.T) {
	err := error(&OpenError{Device: "/dev/ttyUSB9", Err: ErrDeviceInUse})

	if !errors.Is(err, ErrDeviceInUse) {
		t.Errorf("errors.Is(%v, ErrDeviceInUse) = false", err)
	}
	if !IsOpenError(err) {
		t.Error("IsOpenError = false")
	}
	if IsOpenError(ErrDeviceInUse) {
		t.Error("bare sentinel should not be an OpenError")
	}
	if got := err.Error(); got != "open /dev/ttyUSB9: serial device already in use" {
		t.Errorf("Error() = %q", got)
	}
}

func TestOpenRejectsBadOption(t *testing.T) {
	_, err := Open("/dev/null", WithDataBits(4))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if !IsOpenError(err) {
		t.Errorf("Expected *OpenError, got %T", err)
	}
}

func TestWithContextErrors(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	blocked := func() (int, error) {
		<-release
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := withContext(ctx, ErrWriteTimeout, blocked)
	if !errors.Is(err, ErrWriteTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("deadline: got %v, want ErrWriteTimeout wrapping DeadlineExceeded", err)
	}

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = withContext(ctx, ErrReadTimeout, blocked)
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrReadTimeout) {
		t.Errorf("cancel: got %v, want plain context.Canceled", err)
	}

	n, err := withContext(context.Background(), ErrReadTimeout, func() (int, error) { return 3, nil })
	if n != 3 || err != nil {
		t.Errorf("completed op: got %d, %v", n, err)
	}
}
