package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imring/apptime/internal/store"
)

func TestIgnore_RoundTrip(t *testing.T) {
	home := setupHome(t)
	seedStore(t, home)

	out, err := execute(t, "ignore", "add", "--kind", "path", "/usr/bin")
	require.NoError(t, err)
	assert.Contains(t, out, "Ignoring path /usr/bin")

	out, err = execute(t, "ignore", "add", "/opt/tool")
	require.NoError(t, err)
	assert.Contains(t, out, "Ignoring file /opt/tool")

	out, err = execute(t, "ignore", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/usr/bin")
	assert.Contains(t, out, "/opt/tool")

	// rows recorded before the rule are hidden from reports
	out, err = execute(t, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "No usage recorded")

	out, err = execute(t, "ignore", "rm", "--kind", "path", "/usr/bin")
	require.NoError(t, err)
	assert.Contains(t, out, "No longer ignoring path /usr/bin")

	out, err = execute(t, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "editor")

	st, err := store.Open(context.Background(), filepath.Join(home, "apptime.db"))
	require.NoError(t, err)
	defer st.Close()
	rules, err := st.Ignores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []store.IgnoreRule{{Kind: store.IgnoreFile, Value: "/opt/tool"}}, rules)
}

func TestIgnore_AddCreatesDatabase(t *testing.T) {
	home := setupHome(t)
	db := filepath.Join(home, "sub", "fresh.db")

	_, err := execute(t, "--db", db, "ignore", "add", "/usr/bin/bash")
	require.NoError(t, err)
	assert.FileExists(t, db)

	out, err := execute(t, "--db", db, "ignore", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/usr/bin/bash")
}

func TestIgnore_Invalid(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "ignore", "add", "--kind", "glob", "/usr/bin/*")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ignore kind")

	_, err = execute(t, "ignore", "add", "   ")
	require.Error(t, err)

	_, err = execute(t, "ignore", "add")
	require.Error(t, err)
}

func TestIgnore_ListWithoutDatabase(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "ignore", "list")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotInitialized), "got %v", err)
}

func TestIgnore_ListEmpty(t *testing.T) {
	home := setupHome(t)
	seedStore(t, home)

	out, err := execute(t, "ignore", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No ignore rules")
}
