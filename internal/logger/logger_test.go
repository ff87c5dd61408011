package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriter_Defaults(t *testing.T) {
	w := Config{File: "x.log"}.Writer()
	l, ok := w.(*lj.Logger)
	if !ok {
		t.Fatalf("Writer() = %T, want *lumberjack.Logger", w)
	}
	if l.MaxSize != DefaultMaxSizeMB || l.MaxBackups != DefaultMaxBackups || l.MaxAge != DefaultMaxAgeDays {
		t.Errorf("defaults not applied: %+v", l)
	}

	w = Config{File: "x.log", MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 2, Compress: true}.Writer()
	l = w.(*lj.Logger)
	if l.MaxSize != 1 || l.MaxBackups != 9 || l.MaxAge != 2 || !l.Compress {
		t.Errorf("explicit values not applied: %+v", l)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apptime.log")
	log, closer, err := New(Config{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	log.Debug("cycle", "loop", "active")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "loop=active") {
		t.Errorf("log file = %q", data)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, _, err := New(Config{Level: "verbose"}); err == nil {
		t.Error("New() with unknown level should fail")
	}
}

func TestColorTextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, nil)).With("component", "sampler")
	log.Warn("slow cycle")
	log.Info("tick", "n", 2)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "\033[33mWARN\033[0m ") {
		t.Errorf("missing colored level: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "\033[32mINFO\033[0m ") {
		t.Errorf("missing colored level: %q", lines[1])
	}
	if !strings.Contains(lines[0], `msg="slow cycle"`) || strings.Contains(lines[0], `\x1b`) {
		t.Errorf("message escaped: %q", lines[0])
	}
	if strings.Contains(lines[0], "level=") {
		t.Errorf("level repeated in line: %q", lines[0])
	}
	if !strings.Contains(lines[0], "component=sampler") || !strings.Contains(lines[1], "n=2") {
		t.Errorf("attrs lost: %q", buf.String())
	}
}

func TestColorTextHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	log.Info("hidden")
	log.WithGroup("g").Error("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %q", out)
	}
	if !strings.Contains(out, "g.k=v") {
		t.Errorf("WithGroup lost: %q", out)
	}
}
