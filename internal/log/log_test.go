package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{" warning ", slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandlerProduction(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, slog.LevelInfo, true))
	l.Info("cycle", "count", 3)
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, `"msg":"cycle"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level")
	}
}

func TestOr(t *testing.T) {
	d := Discard()
	if Or(d) != d {
		t.Error("Or should return the given logger")
	}
	if Or(nil) == nil {
		t.Error("Or(nil) should fall back to the global logger")
	}
}

func TestThrottled(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, slog.LevelInfo, true))
	th := Throttle(l, time.Hour)

	th.Warn("capture failed", "camera", "Target")
	th.Warn("capture failed", "camera", "Target")
	th.Error("capture failed", "camera", "Target")

	if n := strings.Count(buf.String(), "capture failed"); n != 1 {
		t.Fatalf("want 1 line through, got %d: %s", n, buf.String())
	}
	if th.Suppressed() != 2 {
		t.Errorf("suppressed = %d, want 2", th.Suppressed())
	}
}

func TestThrottled_ReportsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, slog.LevelInfo, true))
	th := Throttle(l, time.Millisecond)

	th.Warn("miss")
	th.suppressed.Add(4)
	time.Sleep(5 * time.Millisecond)
	th.Warn("miss")

	if !strings.Contains(buf.String(), `"suppressed":4`) {
		t.Errorf("suppressed count missing: %s", buf.String())
	}
	if th.Suppressed() != 0 {
		t.Errorf("counter not reset")
	}
}
