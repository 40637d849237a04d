// Package logger builds the process *slog.Logger from config.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/allbin/kiosk-serial/internal/config"
)

// New creates a configured *slog.Logger.
// The returned closer function should be deferred to flush/close file handles.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	writer, closer, err := openOutput(cfg.Output, time.Now)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), closer, nil
}

// ParseLevel converts a string level to slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openOutput returns an io.Writer for the specified output target. A target
// ending in a path separator is a directory that receives one file per local
// day, named after the date of each write.
func openOutput(output string, now func() time.Time) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	}

	if strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator)) {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return nil, nil, err
		}
		d := &dailyFile{dir: output, now: now}
		if err := d.rotate(now().Format(dayLayout)); err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	}

	f, err := openLogFile(output)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

const dayLayout = "2006-01-02"

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

// dailyFile appends to <dir>/YYYY-MM-DD.log and switches files when the
// local date changes between writes.
type dailyFile struct {
	dir string
	now func() time.Time

	mu  sync.Mutex
	day string
	f   *os.File
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if day := d.now().Format(dayLayout); day != d.day || d.f == nil {
		if err := d.rotate(day); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

// rotate must be called with mu held, or before the writer is shared.
func (d *dailyFile) rotate(day string) error {
	f, err := openLogFile(filepath.Join(d.dir, day+".log"))
	if err != nil {
		return err
	}
	if d.f != nil {
		_ = d.f.Close()
	}
	d.f, d.day = f, day
	return nil
}

// Name is the path currently written to.
func (d *dailyFile) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Name()
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
