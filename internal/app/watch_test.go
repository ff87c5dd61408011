package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imring/apptime/internal/config"
	"github.com/imring/apptime/internal/procsrc"
	"github.com/imring/apptime/internal/sampler"
	"github.com/imring/apptime/internal/store"
)

func TestWatchCommand(t *testing.T) {
	if watchCmd.Use != "watch" {
		t.Errorf("expected Use to be 'watch', got '%s'", watchCmd.Use)
	}
	if watchCmd.Short == "" || watchCmd.Long == "" || watchCmd.Example == "" {
		t.Error("expected Short, Long and Example to be set")
	}
	if watchCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestWatchCommandFlags(t *testing.T) {
	tests := []struct {
		flagName     string
		shouldHidden bool
	}{
		{"daemon", false},
		{"daemon-child", true},
		{"pid-file", false},
		{"log-file", false},
		{"stop", false},
		{"listen", false},
		{"active-delay", false},
		{"focus-delay", false},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := watchCmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("expected flag '%s' to exist", tt.flagName)
			}
			if flag.Hidden != tt.shouldHidden {
				t.Errorf("flag '%s' hidden = %v, want %v", tt.flagName, flag.Hidden, tt.shouldHidden)
			}
		})
	}
}

func TestWatchCommandFlagDefaults(t *testing.T) {
	assert.Equal(t, "5s", watchCmd.Flags().Lookup("active-delay").DefValue)
	assert.Equal(t, "1s", watchCmd.Flags().Lookup("focus-delay").DefValue)
	assert.Equal(t, "false", watchCmd.Flags().Lookup("daemon").DefValue)
}

func TestWatchStop_NotRunning(t *testing.T) {
	setupHome(t)

	out, err := execute(t, "watch", "--stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
}

func TestWatchStop_StalePIDFileRemoved(t *testing.T) {
	home := setupHome(t)
	pidFile := filepath.Join(home, "custom.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid\n"), 0o644))

	out, err := execute(t, "watch", "--stop", "--pid-file", pidFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
	assert.NoFileExists(t, pidFile)
}

func TestWatchDaemonStopConflict(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "watch", "--daemon", "--stop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon")
}

func TestWatchDaemon_AlreadyRunning(t *testing.T) {
	home := setupHome(t)
	pidFile := filepath.Join(home, "watch.pid")
	// the test process itself is alive
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644))

	_, err := execute(t, "watch", "--daemon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
	assert.FileExists(t, pidFile)
}

func TestDaemonArgs(t *testing.T) {
	home := setupHome(t)
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })

	require.NoError(t, watchCmd.Flags().Set("focus-delay", "250ms"))
	require.NoError(t, watchCmd.Flags().Set("listen", "127.0.0.1:8642"))
	require.NoError(t, RootCmd.PersistentFlags().Set("log-level", "debug"))
	watchPIDFile = filepath.Join(home, "watch.pid")
	watchLogFile = filepath.Join(home, "watch.log")

	loader, err := config.NewLoader("")
	require.NoError(t, err)
	cfg := config.Config{DB: filepath.Join(home, "apptime.db")}

	args, err := daemonArgs(watchCmd, loader, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"watch", "--daemon-child",
		"--pid-file", filepath.Join(home, "watch.pid"),
		"--log-file", filepath.Join(home, "watch.log"),
		"--db", filepath.Join(home, "apptime.db"),
		"--config", filepath.Join(home, "config.toml"),
		"--log-level", "debug",
		"--listen", "127.0.0.1:8642",
		"--focus-delay", "250ms",
	}, args)
}

func TestDaemonArgs_RelativePathsMadeAbsolute(t *testing.T) {
	setupHome(t)
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })

	watchPIDFile = "watch.pid"
	watchLogFile = "watch.log"
	loader, err := config.NewLoader("")
	require.NoError(t, err)

	args, err := daemonArgs(watchCmd, loader, config.Config{DB: "usage.db"})
	require.NoError(t, err)

	for i, a := range args {
		switch a {
		case "--pid-file", "--log-file", "--db", "--config":
			assert.True(t, filepath.IsAbs(args[i+1]), "%s %s should be absolute", a, args[i+1])
		}
	}
	assert.NotContains(t, args, "--active-delay")
}

func TestRecordingStatus(t *testing.T) {
	assert.Equal(t, "0 active cycles, 0 applications", recordingStatus(sampler.Stats{}))
	assert.Equal(t, "1 active cycle, 1 application", recordingStatus(sampler.Stats{ActiveCycles: 1, FocusCycles: 4, Applications: 1}))
	assert.Equal(t, "12 active cycles, 5 applications", recordingStatus(sampler.Stats{ActiveCycles: 12, Applications: 5}))
}

func TestRunWatchForeground_StopsWithContext(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer st.Close()

	s, err := sampler.New(st, procsrc.NewSystem(), sampler.WithActiveDelay(time.Hour), sampler.WithFocusDelay(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	require.NoError(t, runWatchForeground(ctx, &buf, s))
	assert.False(t, s.Running())

	out := buf.String()
	assert.Contains(t, out, "Sampler started")
	assert.Contains(t, out, "Recording...")
	assert.Contains(t, out, "Usage tracking stopped (0 active cycles, 0 applications)")
}
