package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "debug", true)
	Component(l, "session.controller").Debug("state changed", "to", "listening")

	out := buf.String()
	if !strings.Contains(out, `"component":"session.controller"`) {
		t.Errorf("missing component attr: %s", out)
	}
	if !strings.Contains(out, `"to":"listening"`) {
		t.Errorf("missing to attr: %s", out)
	}
}

func TestInitWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", false)
	Info("hidden")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %s", out)
	}
}
