package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Interval operations

// AddActive upserts every interval of rec into the active log.
func (s *Store) AddActive(ctx context.Context, rec Record) (bool, error) {
	n, err := s.add(ctx, ActiveLog, []Record{rec})
	return n == 1, err
}

// AddFocus upserts every interval of rec into the focus log.
func (s *Store) AddFocus(ctx context.Context, rec Record) (bool, error) {
	n, err := s.add(ctx, FocusLog, []Record{rec})
	return n == 1, err
}

// AddActives writes a batch of records in one transaction and returns how
// many were accepted. Rejected records are skipped; a record whose write
// fails is rolled back alone and its error joined into the result.
func (s *Store) AddActives(ctx context.Context, recs []Record) (int, error) {
	return s.add(ctx, ActiveLog, recs)
}

// AddFocuses is AddActives for the focus log.
func (s *Store) AddFocuses(ctx context.Context, recs []Record) (int, error) {
	return s.add(ctx, FocusLog, recs)
}

func (s *Store) add(ctx context.Context, log Log, recs []Record) (int, error) {
	pending := recs[:0:0]
	for _, rec := range recs {
		if rec.valid() {
			pending = append(pending, rec)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap(err, "failed to begin %s write", log)
	}
	defer tx.Rollback()

	rules, err := listIgnores(ctx, tx)
	if err != nil {
		return 0, err
	}

	var (
		accepted int
		errs     []error
	)
	for i, rec := range pending {
		if IsIgnored(rec.Path, rules) {
			continue
		}
		if err := writeRecord(ctx, tx, log, rec, i); err != nil {
			errs = append(errs, err)
			continue
		}
		accepted++
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap(err, "failed to commit %s write", log)
	}
	return accepted, errors.Join(errs...)
}

// writeRecord stores one record inside its own savepoint so a failure leaves
// the rest of the batch intact.
func writeRecord(ctx context.Context, tx *sql.Tx, log Log, rec Record, seq int) (err error) {
	sp := fmt.Sprintf("record_%d", seq)
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return wrap(err, "failed to open savepoint for %s", rec.Path)
	}
	defer func() {
		if err != nil {
			_, _ = tx.ExecContext(ctx, "ROLLBACK TO "+sp)
		}
		_, _ = tx.ExecContext(ctx, "RELEASE "+sp)
	}()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO applications (path, name) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE applications.name END
		RETURNING id
	`, rec.Path, rec.Name).Scan(&id)
	if err != nil {
		return wrap(err, "failed to upsert application %s", rec.Path)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (program_id, start, "end") VALUES (?, ?, ?)
		ON CONFLICT(program_id, start) DO UPDATE SET "end" = excluded."end"
	`, log.table())
	for _, iv := range rec.Times {
		if _, err = tx.ExecContext(ctx, query, id, formatTime(iv.Start), formatTime(iv.End)); err != nil {
			return wrap(err, "failed to upsert %s interval for %s", log, rec.Path)
		}
	}
	return nil
}

// Ignore operations

// AddIgnore adds a rule. Adding an existing rule, an unknown kind or an empty
// value is a no-op.
func (s *Store) AddIgnore(ctx context.Context, kind IgnoreKind, value string) error {
	if !kind.Valid() || value == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO ignores (type, value) VALUES (?, ?)`, string(kind), value)
	if err != nil {
		return wrap(err, "failed to add ignore %s %s", kind, value)
	}
	return nil
}

// RemoveIgnore deletes a rule. Removing a missing rule is a no-op.
func (s *Store) RemoveIgnore(ctx context.Context, kind IgnoreKind, value string) error {
	if !kind.Valid() || value == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM ignores WHERE type = ? AND value = ?`, string(kind), value)
	if err != nil {
		return wrap(err, "failed to remove ignore %s %s", kind, value)
	}
	return nil
}

// Ignores returns the full rule set.
func (s *Store) Ignores(ctx context.Context) ([]IgnoreRule, error) {
	return listIgnores(ctx, s.db)
}

func listIgnores(ctx context.Context, q queryer) ([]IgnoreRule, error) {
	rows, err := q.QueryContext(ctx, `SELECT type, value FROM ignores ORDER BY type, value`)
	if err != nil {
		return nil, wrap(err, "failed to list ignores")
	}
	defer rows.Close()

	var rules []IgnoreRule
	for rows.Next() {
		var r IgnoreRule
		if err := rows.Scan(&r.Kind, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan ignore row: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ignores: %w", err)
	}
	return rules, nil
}

// IsIgnored reports whether path is excluded by the current rule set.
func (s *Store) IsIgnored(ctx context.Context, path string) (bool, error) {
	rules, err := s.Ignores(ctx)
	if err != nil {
		return false, err
	}
	return IsIgnored(path, rules), nil
}

// Application operations

// Applications lists every known application ordered by path.
func (s *Store) Applications(ctx context.Context) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, name FROM applications ORDER BY path`)
	if err != nil {
		return nil, wrap(err, "failed to list applications")
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.Path, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}
	return apps, nil
}

// Stats returns row counts and the recorded time span.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st          Stats
		first, last dbTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM applications),
			(SELECT COUNT(*) FROM active_logs),
			(SELECT COUNT(*) FROM focus_logs),
			(SELECT COUNT(*) FROM ignores),
			(SELECT MIN(start) FROM active_logs),
			(SELECT MAX("end") FROM active_logs)
	`).Scan(&st.Applications, &st.ActiveRows, &st.FocusRows, &st.Ignores, &first, &last)
	if err != nil {
		return Stats{}, wrap(err, "failed to read stats")
	}
	st.First, st.Last = first.t, last.t
	return st, nil
}

// dbTime scans timestamps whether the driver hands back text or time.Time.
type dbTime struct {
	t time.Time
}

func (d *dbTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		d.t = time.Time{}
	case time.Time:
		d.t = x.UTC()
	case string:
		t, err := parseTime(x)
		if err != nil {
			return fmt.Errorf("failed to parse timestamp %q: %w", x, err)
		}
		d.t = t
	case []byte:
		return d.Scan(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
	return nil
}
