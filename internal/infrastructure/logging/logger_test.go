package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriter_DefaultFields(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)
	logger.Info("frame received", "house_code", "9601")

	entry := decodeEntry(t, &buf)
	want := map[string]string{
		"service":    ServiceName,
		"version":    "test",
		"msg":        "frame received",
		"house_code": "9601",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Errorf("%s = %v, want %q", key, entry[key], value)
		}
	}
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "TEXT"}, "test", &buf)
	logger.Info("port opened", "device", "/dev/ttyUSB0")

	out := buf.String()
	if !strings.Contains(out, "msg=\"port opened\"") || !strings.Contains(out, "device=/dev/ttyUSB0") {
		t.Errorf("unexpected text output %q", out)
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "test", &buf)
	logger.Info("dropped")
	logger.Debug("dropped too")

	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}

	logger.Warn("checksum mismatch")
	if !strings.Contains(buf.String(), "checksum mismatch") {
		t.Errorf("expected warn entry, got %q", buf.String())
	}
}

func TestNewWithWriter_Durations(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Format: "json"}, "test", &buf)
	logger.Info("reopening port", "after", 5*time.Second, "settle", 300*time.Millisecond)

	entry := decodeEntry(t, &buf)
	if entry["after"] != "5s" || entry["settle"] != "300ms" {
		t.Errorf("durations = %v, %v; want 5s, 300ms", entry["after"], entry["settle"])
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Format: "json"}, "test", &buf)
	bridgeLog := logger.Component("bridge")
	if bridgeLog == logger {
		t.Fatal("Component should return a new logger")
	}

	bridgeLog.Info("started")
	entry := decodeEntry(t, &buf)
	if entry["component"] != "bridge" || entry["service"] != ServiceName {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()
	logger.Info("parent")
	if strings.Contains(buf.String(), "component") {
		t.Error("parent logger picked up the component field")
	}
}

func TestNew_Outputs(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", "discard", ""} {
		if New(config.LoggingConfig{Output: output}, "test") == nil {
			t.Errorf("New(output=%q) = nil", output)
		}
	}
	if outputFor("discard") == nil || outputFor("none") == nil {
		t.Error("discard output missing")
	}
}

func TestSince(t *testing.T) {
	got := Since(time.Now().Add(-1500 * time.Microsecond))
	if got%time.Millisecond != 0 {
		t.Errorf("Since() = %v, want whole milliseconds", got)
	}
}
