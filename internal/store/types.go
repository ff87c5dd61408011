package store

import (
	"fmt"
	"time"
)

// Interval is a closed span of application usage. Start must not be after End.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Record is the usage of one application, identified by its executable path.
type Record struct {
	Path  string     `json:"path"`
	Name  string     `json:"name"`
	Times []Interval `json:"times"`
}

// valid reports whether the record can be persisted.
func (r Record) valid() bool {
	if r.Path == "" || len(r.Times) == 0 {
		return false
	}
	for _, iv := range r.Times {
		if iv.End.Before(iv.Start) {
			return false
		}
	}
	return true
}

// Application is a row of the applications table.
type Application struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// Log selects one of the interval tables.
type Log int

const (
	ActiveLog Log = iota
	FocusLog
)

func (l Log) table() string {
	if l == FocusLog {
		return "focus_logs"
	}
	return "active_logs"
}

func (l Log) String() string {
	if l == FocusLog {
		return "focus"
	}
	return "active"
}

// Granularity is the calendar unit a Scope covers.
type Granularity int

const (
	NoScope Granularity = iota
	YearScope
	MonthScope
	DayScope
)

// Scope is a calendar period used to clip query results. The zero value means
// no scope. Build one with Year, Month, Day or ParseScope.
type Scope struct {
	gran  Granularity
	year  int
	month time.Month
	day   int
}

// Year returns the scope covering the whole calendar year y.
func Year(y int) Scope {
	return Scope{gran: YearScope, year: y, month: time.January, day: 1}
}

// Month returns the scope covering month m of year y.
func Month(y int, m time.Month) Scope {
	return Scope{gran: MonthScope, year: y, month: m, day: 1}
}

// Day returns the scope covering a single calendar day.
func Day(y int, m time.Month, d int) Scope {
	return Scope{gran: DayScope, year: y, month: m, day: d}
}

// DayOf returns the day scope containing t, using t's wall clock.
func DayOf(t time.Time) Scope {
	return Day(t.Year(), t.Month(), t.Day())
}

// ParseScope parses "2006", "2006-01" or "2006-01-02". An empty string is no scope.
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return Scope{}, nil
	}
	layouts := []struct {
		layout string
		mk     func(t time.Time) Scope
	}{
		{"2006", func(t time.Time) Scope { return Year(t.Year()) }},
		{"2006-01", func(t time.Time) Scope { return Month(t.Year(), t.Month()) }},
		{"2006-01-02", func(t time.Time) Scope { return DayOf(t) }},
	}
	for _, l := range layouts {
		if len(s) != len(l.layout) {
			continue
		}
		t, err := time.Parse(l.layout, s)
		if err != nil {
			return Scope{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return l.mk(t), nil
	}
	return Scope{}, fmt.Errorf("invalid date %q: want YYYY, YYYY-MM or YYYY-MM-DD", s)
}

// Granularity reports the unit the scope covers.
func (s Scope) Granularity() Granularity { return s.gran }

// IsZero reports whether s is the empty scope.
func (s Scope) IsZero() bool { return s.gran == NoScope }

// Bounds returns the first and the last instant (second granularity) of the
// period in UTC. For the empty scope both are zero.
func (s Scope) Bounds() (first, last time.Time) {
	if s.gran == NoScope {
		return time.Time{}, time.Time{}
	}
	first = time.Date(s.year, s.month, s.day, 0, 0, 0, 0, time.UTC)
	var next time.Time
	switch s.gran {
	case YearScope:
		next = first.AddDate(1, 0, 0)
	case MonthScope:
		next = first.AddDate(0, 1, 0)
	default:
		next = first.AddDate(0, 0, 1)
	}
	return first, next.Add(-time.Second)
}

// contains reports whether t falls inside the period.
func (s Scope) contains(t time.Time) bool {
	if s.gran == NoScope {
		return true
	}
	first, last := s.Bounds()
	t = t.UTC().Truncate(time.Second)
	return !t.Before(first) && !t.After(last)
}

// strftime returns the SQLite format string and the value rows are compared to.
func (s Scope) strftime() (format, value string) {
	switch s.gran {
	case YearScope:
		return "%Y", fmt.Sprintf("%04d", s.year)
	case MonthScope:
		return "%Y-%m", fmt.Sprintf("%04d-%02d", s.year, int(s.month))
	case DayScope:
		return "%Y-%m-%d", fmt.Sprintf("%04d-%02d-%02d", s.year, int(s.month), s.day)
	}
	return "", ""
}

// String returns the scope in the form accepted by ParseScope.
func (s Scope) String() string {
	_, v := s.strftime()
	return v
}

// QueryOptions narrows Actives and Focuses results.
type QueryOptions struct {
	// Path restricts results to one application when non-empty.
	Path  string
	Scope Scope
}

// Stats summarizes the database contents.
type Stats struct {
	Applications int
	ActiveRows   int
	FocusRows    int
	Ignores      int
	First        time.Time
	Last         time.Time
}

// timeLayout is the on-disk timestamp form. SQLite's strftime parses it.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.UTC)
}
