package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/allbin/kiosk-serial/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestOpenOutputStdout(t *testing.T) {
	w, closer, err := openOutput("stdout", time.Now)
	if err != nil {
		t.Fatalf("openOutput(stdout): %v", err)
	}
	defer closer()
	if w != os.Stdout {
		t.Error("expected os.Stdout")
	}
}

func TestOpenOutputStderr(t *testing.T) {
	w, closer, err := openOutput("", time.Now)
	if err != nil {
		t.Fatalf("openOutput(\"\"): %v", err)
	}
	defer closer()
	if w != os.Stderr {
		t.Error("expected os.Stderr")
	}
}

func TestJSONFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.log")
	log, closer, err := New(config.LoggerConfig{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("frame received", "device", "QR")
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("invalid JSON: %v, output: %s", err, data)
	}
	if entry["msg"] != "frame received" || entry["device"] != "QR" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestDailyFileOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs") + "/"
	clock := time.Date(2025, 3, 9, 23, 59, 0, 0, time.Local)
	now := func() time.Time { return clock }

	w, closer, err := openOutput(dir, now)
	if err != nil {
		t.Fatalf("openOutput(dir): %v", err)
	}
	defer closer()
	d, ok := w.(*dailyFile)
	if !ok {
		t.Fatalf("expected *dailyFile, got %T", w)
	}
	if !strings.HasSuffix(d.Name(), "2025-03-09.log") {
		t.Errorf("daily file = %s", d.Name())
	}

	if _, err := w.Write([]byte("before midnight\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if _, err := w.Write([]byte("after midnight\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasSuffix(d.Name(), "2025-03-10.log") {
		t.Errorf("daily file after rollover = %s", d.Name())
	}

	for file, want := range map[string]string{
		"2025-03-09.log": "before midnight\n",
		"2025-03-10.log": "after midnight\n",
	} {
		got, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", file, got, want)
		}
	}
}
