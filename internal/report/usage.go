// Package report aggregates stored intervals into per-application totals.
package report

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/imring/apptime/internal/store"
)

// Usage is the total time one application was active or focused.
type Usage struct {
	Path      string        `json:"path"`
	Name      string        `json:"name"`
	Total     time.Duration `json:"-"`
	Seconds   int64         `json:"total_seconds"`
	Sessions  int           `json:"sessions"`
	Days      int           `json:"days"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
}

// Options controls presentation.
type Options struct {
	// WindowNames shows the recorded window name instead of the executable
	// file name when one is known.
	WindowNames bool
}

// Source is the read side of the record store.
type Source interface {
	Actives(ctx context.Context, opts store.QueryOptions) ([]store.Record, error)
	Focuses(ctx context.Context, opts store.QueryOptions) ([]store.Record, error)
}

// Reporter builds usage reports from a Source.
type Reporter struct {
	src Source
}

// New creates a Reporter.
func New(src Source) *Reporter {
	return &Reporter{src: src}
}

// Usage loads the active or focus log and summarizes it.
func (r *Reporter) Usage(ctx context.Context, log store.Log, q store.QueryOptions, opts Options) ([]Usage, error) {
	var (
		recs []store.Record
		err  error
	)
	if log == store.FocusLog {
		recs, err = r.src.Focuses(ctx, q)
	} else {
		recs, err = r.src.Actives(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", log, err)
	}
	return Summarize(recs, opts), nil
}

// Summarize returns one Usage per record, longest total first. Overlapping
// intervals of one application are counted once.
func Summarize(recs []store.Record, opts Options) []Usage {
	out := make([]Usage, 0, len(recs))
	for _, rec := range recs {
		merged := mergeIntervals(rec.Times)
		if len(merged) == 0 {
			continue
		}

		u := Usage{
			Path:      rec.Path,
			Name:      DisplayName(rec, opts.WindowNames),
			Sessions:  len(merged),
			FirstSeen: merged[0].Start,
			LastSeen:  merged[0].End,
		}
		days := make(map[string]struct{})
		for _, iv := range merged {
			u.Total += iv.Duration()
			if iv.End.After(u.LastSeen) {
				u.LastSeen = iv.End
			}
			for d := iv.Start.UTC().Truncate(24 * time.Hour); !d.After(iv.End); d = d.Add(24 * time.Hour) {
				days[d.Format("2006-01-02")] = struct{}{}
			}
		}
		u.Days = len(days)
		u.Seconds = int64(u.Total / time.Second)
		out = append(out, u)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Total sums the usage durations.
func Total(usages []Usage) time.Duration {
	var d time.Duration
	for _, u := range usages {
		d += u.Total
	}
	return d
}

// DisplayName is the window name when requested and known, otherwise the
// executable's file name.
func DisplayName(rec store.Record, windowNames bool) string {
	if windowNames && strings.TrimSpace(rec.Name) != "" {
		return rec.Name
	}
	return baseName(rec.Path)
}

// baseName handles both slash styles so Windows paths read on other systems
// still shorten correctly.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 && i < len(path)-1 {
		return path[i+1:]
	}
	return filepath.Base(path)
}

// mergeIntervals sorts by start and joins overlapping or touching spans.
func mergeIntervals(in []store.Interval) []store.Interval {
	if len(in) == 0 {
		return nil
	}
	ivs := append([]store.Interval(nil), in...)
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })

	out := ivs[:1]
	for _, iv := range ivs[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
