package sampler

import (
	"time"

	"github.com/imring/apptime/internal/procsrc"
	"github.com/imring/apptime/internal/store"
)

// Collect turns one scan into records ending at now. Handles that no longer
// exist or lack a path or start time are dropped. Processes sharing a path
// collapse into one record starting at the earliest start time. Records keep
// the order in which their paths were first seen.
func Collect(handles []procsrc.Handle, now time.Time) []store.Record {
	type sample struct {
		name  string
		start time.Time
	}

	var order []string
	seen := make(map[string]sample, len(handles))
	for _, h := range handles {
		if h == nil || !h.Exists() {
			continue
		}
		path := h.FullPath()
		if path == "" {
			continue
		}
		cur := sample{name: h.WindowName(), start: h.StartTime()}
		if cur.start.IsZero() {
			continue
		}
		prev, ok := seen[path]
		if !ok {
			order = append(order, path)
			seen[path] = cur
			continue
		}
		if cur.start.Before(prev.start) {
			seen[path] = cur
		}
	}

	recs := make([]store.Record, 0, len(order))
	for _, path := range order {
		s := seen[path]
		recs = append(recs, store.Record{
			Path:  path,
			Name:  s.name,
			Times: []store.Interval{{Start: s.start, End: now}},
		})
	}
	return recs
}
