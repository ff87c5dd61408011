package store

import (
	"context"
	"fmt"
	"strings"
)

// Actives returns active usage grouped per application, clipped to opts.Scope.
func (s *Store) Actives(ctx context.Context, opts QueryOptions) ([]Record, error) {
	return s.records(ctx, ActiveLog, opts)
}

// Focuses returns focus usage grouped per application, clipped to opts.Scope.
func (s *Store) Focuses(ctx context.Context, opts QueryOptions) ([]Record, error) {
	return s.records(ctx, FocusLog, opts)
}

func (s *Store) records(ctx context.Context, log Log, opts QueryOptions) ([]Record, error) {
	query, args := buildSelect(log, opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "failed to query %s records", log)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			path, name string
			start, end dbTime
		)
		if err := rows.Scan(&path, &name, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", log, err)
		}
		iv := Interval{Start: start.t, End: end.t}

		// Rows arrive ordered by path, so one application is one run.
		if n := len(records); n > 0 && records[n-1].Path == path {
			records[n-1].Times = append(records[n-1].Times, iv)
			continue
		}
		records = append(records, Record{Path: path, Name: name, Times: []Interval{iv}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", log, err)
	}
	return records, nil
}

// buildSelect renders the read query for log. With a scope, each endpoint
// that falls outside the period is replaced by the period boundary:
//
//	start' = strftime(f, start) = V ? start : first
//	end'   = strftime(f, end)   = V ? end   : last
//
// and rows that do not overlap [first, last] are dropped.
func buildSelect(log Log, opts QueryOptions) (string, []any) {
	var (
		b     strings.Builder
		args  []any
		where []string
	)

	startExpr, endExpr := "logs.start", `logs."end"`
	if !opts.Scope.IsZero() {
		format, value := opts.Scope.strftime()
		first, last := opts.Scope.Bounds()
		firstS, lastS := formatTime(first), formatTime(last)

		startExpr = "CASE WHEN strftime(?, logs.start) = ? THEN logs.start ELSE ? END"
		endExpr = `CASE WHEN strftime(?, logs."end") = ? THEN logs."end" ELSE ? END`
		args = append(args, format, value, firstS, format, value, lastS)

		where = append(where, `logs.start <= ?`, `logs."end" >= ?`)
		args = append(args, lastS, firstS)
	}

	fmt.Fprintf(&b, "SELECT a.path, a.name, %s, %s\n", startExpr, endExpr)
	fmt.Fprintf(&b, "FROM %s AS logs\n", log.table())
	b.WriteString("JOIN applications AS a ON a.id = logs.program_id\n")

	where = append(where, fmt.Sprintf(
		"NOT EXISTS (SELECT 1 FROM ignores AS i WHERE %s(a.path, i.type, i.value))", ignoreFunc))
	if opts.Path != "" {
		where = append(where, "a.path = ?")
		args = append(args, opts.Path)
	}

	b.WriteString("WHERE ")
	b.WriteString(strings.Join(where, "\n  AND "))
	b.WriteString("\nORDER BY a.path, logs.start")
	return b.String(), args
}
