package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/imring/apptime/internal/store"
)

// setupHome points the data directory at a fresh temp dir and returns it.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("APPTIME_HOME", home)
	t.Setenv("NO_COLOR", "1")
	return home
}

// resetFlags restores every flag of cmd and its children to its default so
// package-level flag variables do not leak between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })

	buf := &bytes.Buffer{}
	RootCmd.SetOut(buf)
	RootCmd.SetErr(buf)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return buf.String(), err
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

// seedStore writes a small fixed data set to <home>/apptime.db.
func seedStore(t *testing.T, home string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(home, "apptime.db"))
	require.NoError(t, err)
	defer st.Close()

	n, err := st.AddActives(ctx, []store.Record{
		{Path: "/usr/bin/editor", Name: "Editor", Times: []store.Interval{
			{Start: at("2023-10-24 09:00:00"), End: at("2023-10-24 10:00:00")},
		}},
		{Path: "/usr/bin/night", Name: "Night Owl", Times: []store.Interval{
			{Start: at("2023-10-24 23:00:00"), End: at("2023-10-25 01:00:00")},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ok, err := st.AddFocus(ctx, store.Record{Path: "/usr/bin/editor", Name: "Editor", Times: []store.Interval{
		{Start: at("2023-10-24 09:10:00"), End: at("2023-10-24 09:25:00")},
	}})
	require.NoError(t, err)
	require.True(t, ok)
}
