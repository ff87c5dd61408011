// Package store persists application usage intervals and ignore rules in
// SQLite and answers calendar-scoped usage queries.
//
// Writes upsert intervals keyed by (application, start), so re-sending a
// growing interval on every poll extends it in place. Ignore rules are
// checked on write and again on read, which hides history recorded before a
// rule was added.
package store

import "context"

// Recorder is the record store contract used by the sampler, the CLI and the
// HTTP API.
type Recorder interface {
	// AddActive upserts rec into the active log. It reports false without
	// writing when rec is invalid or its path is ignored.
	AddActive(ctx context.Context, rec Record) (bool, error)
	// AddFocus is AddActive for the focus log.
	AddFocus(ctx context.Context, rec Record) (bool, error)

	AddIgnore(ctx context.Context, kind IgnoreKind, value string) error
	RemoveIgnore(ctx context.Context, kind IgnoreKind, value string) error
	Ignores(ctx context.Context) ([]IgnoreRule, error)
	IsIgnored(ctx context.Context, path string) (bool, error)

	Actives(ctx context.Context, opts QueryOptions) ([]Record, error)
	Focuses(ctx context.Context, opts QueryOptions) ([]Record, error)
}

var _ Recorder = (*Store)(nil)
