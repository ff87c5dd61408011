// Package output provides terminal output utilities for apptime.
//
// This package includes:
//   - Table rendering for usage reports, ignore rules and store status
//   - A spinner for the foreground watcher
//   - Human-readable formatting for durations and dates
//
// Tables use box-drawing rules and ANSI color codes when stdout is a terminal.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/imring/apptime/internal/report"
	"github.com/imring/apptime/internal/store"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// FormatDuration renders d as "999h 59m 59s". Zero hour and minute parts are
// omitted; seconds are always shown.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60

	var sb strings.Builder
	if h > 0 {
		fmt.Fprintf(&sb, "%dh ", h)
	}
	if m > 0 {
		fmt.Fprintf(&sb, "%dm ", m)
	}
	fmt.Fprintf(&sb, "%ds", s)
	return sb.String()
}

// RenderUsageTable renders per-application totals in the order given,
// followed by a total row. The caller sorts.
func RenderUsageTable(usages []report.Usage) string {
	if len(usages) == 0 {
		return "No usage recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-28s %-14s %-9s %-6s %s\n",
		"Application", "Time", "Sessions", "Days", "Last Seen"))
	sb.WriteString(strings.Repeat("─", 76))
	sb.WriteString("\n")

	for _, u := range usages {
		sb.WriteString(fmt.Sprintf("%-28s %-14s %-9d %-6d %s\n",
			truncate(u.Name, 28),
			FormatDuration(u.Total),
			u.Sessions,
			u.Days,
			formatRelativeTime(u.LastSeen)))
	}

	sb.WriteString(strings.Repeat("─", 76))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-28s %s\n",
		fmt.Sprintf("%d applications", len(usages)),
		colorize(colorGreen, FormatDuration(report.Total(usages)))))

	return sb.String()
}

// RenderIgnoreTable renders the ignore rules.
func RenderIgnoreTable(rules []store.IgnoreRule) string {
	if len(rules) == 0 {
		return "No ignore rules.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-6s %s\n", "Kind", "Value"))
	sb.WriteString(strings.Repeat("─", 60))
	sb.WriteString("\n")

	for _, r := range rules {
		color := colorYellow
		if r.Kind == store.IgnoreFile {
			color = colorGray
		}
		// Pad before colorizing so escape codes do not skew the column.
		sb.WriteString(fmt.Sprintf("%s %s\n",
			colorize(color, fmt.Sprintf("%-6s", r.Kind)),
			r.Value))
	}

	return sb.String()
}

// DaemonState is the watcher process as seen by the status command.
type DaemonState struct {
	Running bool
	PID     int
	PIDFile string
}

// RenderStatus renders the daemon state and store counters.
func RenderStatus(d DaemonState, dbPath string, st store.Stats) string {
	var sb strings.Builder

	watcher := colorize(colorRed, "stopped")
	if d.Running {
		watcher = colorize(colorGreen, "running") + fmt.Sprintf(" (PID %d)", d.PID)
	}

	sb.WriteString(fmt.Sprintf("%-14s %s\n", "Watcher:", watcher))
	sb.WriteString(fmt.Sprintf("%-14s %s\n", "PID file:", d.PIDFile))
	sb.WriteString(fmt.Sprintf("%-14s %s\n", "Database:", dbPath))
	sb.WriteString(fmt.Sprintf("%-14s %d\n", "Applications:", st.Applications))
	sb.WriteString(fmt.Sprintf("%-14s %d active, %d focus\n", "Intervals:", st.ActiveRows, st.FocusRows))
	sb.WriteString(fmt.Sprintf("%-14s %d\n", "Ignore rules:", st.Ignores))
	if !st.First.IsZero() {
		sb.WriteString(fmt.Sprintf("%-14s %s to %s (last %s)\n", "Recorded:",
			st.First.Format("2006-01-02 15:04"),
			st.Last.Format("2006-01-02 15:04"),
			formatRelativeTime(st.Last)))
	}

	return sb.String()
}

// formatRelativeTime formats a time as relative to now.
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate shortens s to maxLen runes, adding "..." if needed.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
