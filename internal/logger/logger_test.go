package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Pretty: false, Output: &buf}), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if idx := strings.LastIndex(line, "\n"); idx >= 0 {
		line = line[idx+1:]
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, line)
	}
	return m
}

// ============================================================================
// Construction Tests
// ============================================================================

func TestNew(t *testing.T) {
	if l := New(DefaultConfig()); l == nil {
		t.Fatal("New() returned nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("Level = %v, want InfoLevel", cfg.Level)
	}
	if cfg.Output == nil {
		t.Error("Output should not be nil")
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("bytes.Buffer should not be a terminal")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded")
	l.WithWorker(1).Warn("discarded")
}

// ============================================================================
// Field Tests
// ============================================================================

func TestLogger_Fields(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Logger) *Logger
		key   string
	}{
		{"component", func(l *Logger) *Logger { return l.WithComponent("fetcher") }, "component"},
		{"field", func(l *Logger) *Logger { return l.WithField("custom", "v") }, "custom"},
		{"url", func(l *Logger) *Logger { return l.WithURL("http://en.wikipedia.org/wiki/Mario") }, "url"},
		{"worker", func(l *Logger) *Logger { return l.WithWorker(7) }, "worker_id"},
		{"depth", func(l *Logger) *Logger { return l.WithDepth(2) }, "depth"},
		{"error", func(l *Logger) *Logger { return l.WithError(errors.New("boom")) }, "error"},
		{"duration", func(l *Logger) *Logger { return l.WithDuration(time.Second) }, "duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBufferLogger(InfoLevel)
			tt.apply(l).Info("message")

			m := decodeLine(t, buf)
			if _, ok := m[tt.key]; !ok {
				t.Errorf("field %q missing in %v", tt.key, m)
			}
		})
	}
}

func TestLogger_Infof(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	l.Infof("crawled %d pages", 12)

	if !strings.Contains(buf.String(), "crawled 12 pages") {
		t.Errorf("Output should contain formatted message: %s", buf.String())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel)

	l.Debug("debug-msg")
	l.Info("info-msg")
	l.Warn("warn-msg")
	l.Error("error-msg")

	out := buf.String()
	if strings.Contains(out, "debug-msg") || strings.Contains(out, "info-msg") {
		t.Errorf("debug/info should be filtered: %s", out)
	}
	if !strings.Contains(out, "warn-msg") || !strings.Contains(out, "error-msg") {
		t.Errorf("warn/error should be present: %s", out)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel)

	l.Debug("first")
	l.SetLevel(ErrorLevel)
	l.Debug("second")

	out := buf.String()
	if !strings.Contains(out, "first") {
		t.Error("first debug should appear")
	}
	if strings.Contains(out, "second") {
		t.Error("second debug should be filtered")
	}
}

// ============================================================================
// Event Tests
// ============================================================================

func TestLogger_PageEvent(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	l.PageEvent("http://en.wikipedia.org/wiki/Luigi", 1, 42, 250*time.Millisecond)

	m := decodeLine(t, buf)
	if m["message"] != "Page crawled" {
		t.Errorf("message = %v, want Page crawled", m["message"])
	}
	if m["links"] != float64(42) {
		t.Errorf("links = %v, want 42", m["links"])
	}
	if m["depth"] != float64(1) {
		t.Errorf("depth = %v, want 1", m["depth"])
	}
}

func TestLogger_FailureEvent(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	l.FailureEvent(errors.New("disk full"), "http://en.wikipedia.org/wiki/Peach", "persist")

	m := decodeLine(t, buf)
	if m["level"] != "warn" {
		t.Errorf("level = %v, want warn", m["level"])
	}
	if m["stage"] != "persist" {
		t.Errorf("stage = %v, want persist", m["stage"])
	}
	if m["error"] != "disk full" {
		t.Errorf("error = %v, want disk full", m["error"])
	}
}

func TestLogger_StatsEvent(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	l.StatsEvent(map[string]interface{}{
		"pages_crawled": 100,
		"pages_failed":  5,
	})

	m := decodeLine(t, buf)
	if m["pages_crawled"] != float64(100) {
		t.Errorf("pages_crawled = %v, want 100", m["pages_crawled"])
	}
	if m["message"] != "Crawl progress" {
		t.Errorf("message = %v, want Crawl progress", m["message"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
