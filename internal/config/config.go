// Package config loads apptime settings from a TOML file, APPTIME_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/imring/apptime/internal/logger"
)

// Config is the full set of settings.
type Config struct {
	DB         string        `mapstructure:"db"`
	Monitoring Monitoring    `mapstructure:"monitoring"`
	Focus      Focus         `mapstructure:"focus"`
	Log        logger.Config `mapstructure:"log"`
	API        API           `mapstructure:"api"`
	Report     Report        `mapstructure:"report"`
}

// Monitoring controls the sampler cadence.
type Monitoring struct {
	ActiveDelay time.Duration `mapstructure:"active_delay"`
	FocusDelay  time.Duration `mapstructure:"focus_delay"`
	OnlyVisible bool          `mapstructure:"only_visible"`
}

// Focus configures how the focused window is resolved.
type Focus struct {
	Command     string `mapstructure:"command"`
	NameCommand string `mapstructure:"name_command"`
}

type API struct {
	Listen string `mapstructure:"listen"`
}

type Report struct {
	WindowNames bool `mapstructure:"window_names"`
}

// Dir returns the apptime data directory, $APPTIME_HOME or ~/.apptime.
func Dir() (string, error) {
	if d := os.Getenv("APPTIME_HOME"); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".apptime"), nil
}

// Loader reads Config through a dedicated viper instance.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a loader for the file at path. An empty path means
// <Dir>/config.toml. The file is optional.
func NewLoader(path string) (*Loader, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = filepath.Join(dir, "config.toml")
	}

	v := viper.New()
	setDefaults(v, dir)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("APPTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("db", filepath.Join(dir, "apptime.db"))
	v.SetDefault("monitoring.active_delay", 5*time.Second)
	v.SetDefault("monitoring.focus_delay", 1*time.Second)
	v.SetDefault("monitoring.only_visible", false)
	v.SetDefault("focus.command", defaultFocusCommand())
	v.SetDefault("focus.name_command", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("api.listen", "")
	v.SetDefault("report.window_names", false)
}

func defaultFocusCommand() string {
	if runtime.GOOS == "linux" {
		return "xdotool getactivewindow getwindowpid"
	}
	return ""
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Path returns the config file location.
func (l *Loader) Path() string { return l.v.ConfigFileUsed() }

// Load reads the file if it exists and returns the merged settings.
func (l *Loader) Load() (Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read config %s: %w", l.Path(), err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Monitoring.ActiveDelay <= 0 || cfg.Monitoring.FocusDelay <= 0 {
		return Config{}, fmt.Errorf("monitoring delays must be positive (active %s, focus %s)",
			cfg.Monitoring.ActiveDelay, cfg.Monitoring.FocusDelay)
	}
	return cfg, nil
}

// Watch calls onChange with the reloaded settings whenever the config file
// is written. Invalid edits are passed to onError and otherwise ignored.
// It returns false when there is no file to watch.
func (l *Loader) Watch(onChange func(Config), onError func(error)) bool {
	if _, err := os.Stat(l.Path()); err != nil {
		return false
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
	return true
}
