package output

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/imring/apptime/internal/report"
	"github.com/imring/apptime/internal/store"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{1500 * time.Millisecond, "1s"},
		{59 * time.Second, "59s"},
		{time.Minute, "1m 0s"},
		{time.Hour, "1h 0s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
		{999*time.Hour + 59*time.Minute + 59*time.Second, "999h 59m 59s"},
		{26 * time.Hour, "26h 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderUsageTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	now := time.Now()

	tests := []struct {
		name     string
		usages   []report.Usage
		contains []string
	}{
		{
			name:     "empty",
			usages:   nil,
			contains: []string{"No usage recorded"},
		},
		{
			name: "rows and total",
			usages: []report.Usage{
				{Path: "/usr/bin/firefox", Name: "firefox", Total: 2*time.Hour + 5*time.Second, Sessions: 3, Days: 1, LastSeen: now.Add(-2 * time.Hour)},
				{Path: "/usr/bin/vim", Name: "vim", Total: 90 * time.Second, Sessions: 1, Days: 1, LastSeen: now},
			},
			contains: []string{"Application", "firefox", "2h 5s", "2 hours ago", "vim", "1m 30s", "just now", "2 applications", "2h 1m 35s"},
		},
		{
			name: "long names truncated",
			usages: []report.Usage{
				{Name: "an-application-with-a-very-long-name", Total: time.Second},
			},
			contains: []string{"an-application-with-a-ver..."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderUsageTable(tt.usages)
			for _, expected := range tt.contains {
				if !strings.Contains(result, expected) {
					t.Errorf("RenderUsageTable() missing expected string %q\nGot:\n%s", expected, result)
				}
			}
		})
	}
}

func TestRenderUsageTable_KeepsOrder(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	result := RenderUsageTable([]report.Usage{
		{Name: "zeta", Total: time.Hour},
		{Name: "alpha", Total: time.Minute},
	})
	if strings.Index(result, "zeta") > strings.Index(result, "alpha") {
		t.Errorf("rows reordered:\n%s", result)
	}
}

func TestRenderIgnoreTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := RenderIgnoreTable(nil); !strings.Contains(got, "No ignore rules") {
		t.Errorf("RenderIgnoreTable(nil) = %q", got)
	}

	result := RenderIgnoreTable([]store.IgnoreRule{
		{Kind: store.IgnoreFile, Value: "/usr/bin/bash"},
		{Kind: store.IgnorePath, Value: "/usr/lib"},
	})
	for _, want := range []string{"Kind", "file   /usr/bin/bash", "path   /usr/lib"} {
		if !strings.Contains(result, want) {
			t.Errorf("RenderIgnoreTable() missing %q\nGot:\n%s", want, result)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	stopped := RenderStatus(DaemonState{PIDFile: "/tmp/apptime.pid"}, "/tmp/apptime.db", store.Stats{})
	for _, want := range []string{"stopped", "/tmp/apptime.pid", "/tmp/apptime.db", "Applications:  0"} {
		if !strings.Contains(stopped, want) {
			t.Errorf("RenderStatus() missing %q\nGot:\n%s", want, stopped)
		}
	}
	if strings.Contains(stopped, "Recorded:") {
		t.Errorf("empty store should not show a recorded range:\n%s", stopped)
	}

	first := time.Date(2023, time.October, 24, 9, 0, 0, 0, time.UTC)
	running := RenderStatus(DaemonState{Running: true, PID: 4242}, "db", store.Stats{
		Applications: 3, ActiveRows: 10, FocusRows: 4, Ignores: 1,
		First: first, Last: first.Add(90 * time.Minute),
	})
	for _, want := range []string{"running (PID 4242)", "10 active, 4 focus", "2023-10-24 09:00 to 2023-10-24 10:30"} {
		if !strings.Contains(running, want) {
			t.Errorf("RenderStatus() missing %q\nGot:\n%s", want, running)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		time time.Time
		want string
	}{
		{"zero time", time.Time{}, "never"},
		{"just now", now.Add(-30 * time.Second), "just now"},
		{"one minute ago", now.Add(-1 * time.Minute), "1 minute ago"},
		{"minutes ago", now.Add(-45 * time.Minute), "45 minutes ago"},
		{"hours ago", now.Add(-3 * time.Hour), "3 hours ago"},
		{"one day ago", now.Add(-24 * time.Hour), "1 day ago"},
		{"weeks ago", now.Add(-14 * 24 * time.Hour), "2 weeks ago"},
		{"months ago", now.Add(-90 * 24 * time.Hour), "3 months ago"},
		{"years ago", now.Add(-730 * 24 * time.Hour), "2 years ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatRelativeTime(tt.time)
			if got != tt.want {
				t.Errorf("formatRelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 2, "he"},
		{"hello world", 4, "h..."},
		{"Документы и файлы", 8, "Докум..."},
		{"日本語のタイトル", 8, "日本語のタイトル"},
		{"日本語のタイトル", 2, "日本"},
	}

	for _, tt := range tests {
		got := truncate(tt.input, tt.maxLen)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q is not valid UTF-8", tt.input, tt.maxLen, got)
		}
	}
}

func TestIsColorEnabled_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if IsColorEnabled() {
		t.Error("IsColorEnabled() should be false when NO_COLOR is set")
	}
	if got := colorize(colorRed, "x"); got != "x" {
		t.Errorf("colorize() = %q, want plain text", got)
	}
}
