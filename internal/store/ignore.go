package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IgnoreKind selects how an IgnoreRule value is compared to a path.
type IgnoreKind string

const (
	// IgnoreFile matches one executable path exactly.
	IgnoreFile IgnoreKind = "file"
	// IgnorePath matches every executable inside a directory tree.
	IgnorePath IgnoreKind = "path"
)

// ParseIgnoreKind validates a kind string.
func ParseIgnoreKind(s string) (IgnoreKind, error) {
	switch k := IgnoreKind(strings.ToLower(strings.TrimSpace(s))); k {
	case IgnoreFile, IgnorePath:
		return k, nil
	}
	return "", fmt.Errorf("invalid ignore kind %q: want %q or %q", s, IgnoreFile, IgnorePath)
}

// Valid reports whether k is a known kind.
func (k IgnoreKind) Valid() bool {
	return k == IgnoreFile || k == IgnorePath
}

// IgnoreRule excludes applications from recording and from query results.
type IgnoreRule struct {
	Kind  IgnoreKind `json:"kind"`
	Value string     `json:"value"`
}

// Match reports whether the rule excludes path.
func (r IgnoreRule) Match(path string) bool {
	if path == "" || r.Value == "" {
		return false
	}
	switch r.Kind {
	case IgnoreFile:
		return path == r.Value
	case IgnorePath:
		return withinDir(r.Value, path)
	}
	return false
}

// IsIgnored reports whether any rule excludes path. This is the single
// predicate behind both the write-time check and the is_ignored SQL function.
func IsIgnored(path string, rules []IgnoreRule) bool {
	for _, r := range rules {
		if r.Match(path) {
			return true
		}
	}
	return false
}

// withinDir reports whether path lies lexically inside dir or one of its
// descendants. dir itself counts as inside. Paths on different volumes never
// match.
func withinDir(dir, path string) bool {
	if filepath.VolumeName(dir) != filepath.VolumeName(path) {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "" {
		return false
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return first != ".."
}
