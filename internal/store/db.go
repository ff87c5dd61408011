package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
)

// ErrNotInitialized is returned when the database has no schema yet.
var ErrNotInitialized = errors.New("database not initialized: run 'apptime watch' first")

// ignoreFunc is the SQL name of the ignore predicate: is_ignored(path, type, value).
const ignoreFunc = "is_ignored"

func init() {
	err := sqlite.RegisterDeterministicScalarFunction(ignoreFunc, 3, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		rule := IgnoreRule{Kind: IgnoreKind(asString(args[1])), Value: asString(args[2])}
		if rule.Match(asString(args[0])) {
			return int64(1), nil
		}
		return int64(0), nil
	})
	if err != nil {
		panic(fmt.Sprintf("store: register %s: %v", ignoreFunc, err))
	}
}

func asString(v driver.Value) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

// Store provides SQLite persistence for usage records and ignore rules.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the specified database path.
// Use ":memory:" for in-memory databases (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only allows one writer at a time; a single connection also
	// keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return &Store{db: db}, nil
}

// Open creates a Store and ensures its schema exists.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.CreateSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateSchema creates all tables and indexes.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// wrap annotates err and maps missing tables to ErrNotInitialized.
func wrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%s: %w (%v)", msg, ErrNotInitialized, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
