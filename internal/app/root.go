package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/imring/apptime/internal/config"
	"github.com/imring/apptime/internal/store"
)

var (
	dbPath     string
	configPath string
	logLevel   string

	// RootCmd is the root command for apptime
	RootCmd = &cobra.Command{
		Use:   "apptime",
		Short: "Track how long applications run and stay focused",
		Long: `apptime samples the running processes and the focused window at a fixed
cadence and stores per-application usage intervals in a local SQLite database.

Two logs are kept:
  • Active: every running application with a known executable path
  • Focus:  the application owning the focused window

Quick Start:
  1. apptime watch --daemon
  2. apptime report --today
  3. apptime ignore add --kind path /usr/lib

Examples:
  # Check whether recording is running
  apptime status

  # Time spent in focused applications this month
  apptime report --focus --month

  # Stop recording
  apptime watch --stop`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "apptime: application usage tracker")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'apptime status' to check recording status.")
			fmt.Fprintln(out, "Run 'apptime --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.apptime/apptime.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.apptime/config.toml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(reportCmd)
	RootCmd.AddCommand(ignoreCmd)
	RootCmd.AddCommand(statusCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.ExecuteContext(context.Background())
}

// loadConfig merges the config file, environment and flags. binds maps
// config keys to command flags that override them when set.
func loadConfig(binds map[string]*pflag.Flag) (*config.Loader, config.Config, error) {
	loader, err := config.NewLoader(configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	v := loader.Viper()

	all := map[string]*pflag.Flag{
		"db":        RootCmd.PersistentFlags().Lookup("db"),
		"log.level": RootCmd.PersistentFlags().Lookup("log-level"),
	}
	for k, f := range binds {
		all[k] = f
	}
	for key, f := range all {
		// Unchanged flags must not shadow file and env values.
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, config.Config{}, fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	return loader, cfg, nil
}

// getDataDir returns ~/.apptime (or $APPTIME_HOME), creating it if needed.
func getDataDir() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create apptime directory: %w", err)
	}
	return dir, nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}

// openStore opens the database at path, creating it and its schema.
func openStore(ctx context.Context, path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// openExistingStore opens the database at path without creating it.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, store.ErrNotInitialized
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
