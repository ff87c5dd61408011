package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/imring/apptime/internal/api"
	"github.com/imring/apptime/internal/config"
	"github.com/imring/apptime/internal/logger"
	"github.com/imring/apptime/internal/metrics"
	"github.com/imring/apptime/internal/output"
	"github.com/imring/apptime/internal/procsrc"
	"github.com/imring/apptime/internal/sampler"
	"github.com/imring/apptime/internal/store"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchListen      string
	watchActiveDelay time.Duration
	watchFocusDelay  time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Record running and focused applications",
		Long: `Start sampling the process table and the focused window.

Two loops run side by side:
  • Active: every active delay, each running application with a known
    executable path is recorded from its process start time until now
  • Focus: every focus delay, the focused application is recorded from the
    moment it gained focus until now

Repeated samples of the same process extend one interval instead of adding
new rows. Ignored applications are never written.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon

Delays are read from the config file and picked up again whenever the file
changes. With --listen, an HTTP API serves reports and metrics.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  apptime watch

  # Run as background daemon with the HTTP API
  apptime watch --daemon --listen 127.0.0.1:8642

  # Stop running daemon
  apptime watch --stop

  # Sample more often
  apptime watch --active-delay 2s --focus-delay 500ms`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.apptime/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "daemon log file path (default: ~/.apptime/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().StringVar(&watchListen, "listen", "", "serve the HTTP API on this address")
	watchCmd.Flags().DurationVar(&watchActiveDelay, "active-delay", sampler.DefaultActiveDelay, "delay between active samples")
	watchCmd.Flags().DurationVar(&watchFocusDelay, "focus-delay", sampler.DefaultFocusDelay, "delay between focus samples")

	watchCmd.MarkFlagsMutuallyExclusive("daemon", "stop")
	_ = watchCmd.Flags().MarkHidden("daemon-child")
}

func watchBinds(cmd *cobra.Command) map[string]*pflag.Flag {
	return map[string]*pflag.Flag{
		"monitoring.active_delay": cmd.Flags().Lookup("active-delay"),
		"monitoring.focus_delay":  cmd.Flags().Lookup("focus-delay"),
		"api.listen":              cmd.Flags().Lookup("listen"),
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}
	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	if watchStop {
		return stopWatchDaemon(cmd.OutOrStdout())
	}

	loader, cfg, err := loadConfig(watchBinds(cmd))
	if err != nil {
		return err
	}

	if watchDaemon {
		return startWatchDaemon(cmd, loader, cfg)
	}

	if watchDaemonChild {
		cfg.Log.File = watchLogFile
	}
	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	st, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	s, err := newSampler(st, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}

	if loader.Watch(
		func(c config.Config) { s.SetDelays(c.Monitoring.ActiveDelay, c.Monitoring.FocusDelay) },
		func(err error) { log.Warn("ignoring invalid config change", "error", err) },
	) {
		log.Debug("watching config file", "path", loader.Path())
	}

	var apiDone <-chan error
	if cfg.API.Listen != "" {
		srv := api.New(st,
			api.WithStatus(s),
			api.WithMetrics(metrics.Handler()),
			api.WithLogger(log),
			api.WithWindowNames(cfg.Report.WindowNames),
		)
		apiDone, err = serveAPI(ctx, srv, cfg.API.Listen, log)
		if err != nil {
			return err
		}
	}

	if watchDaemonChild {
		// stdout and stderr are redirected; everything goes through log
		err = s.RunDaemon(ctx, watchPIDFile)
	} else {
		err = runWatchForeground(ctx, cmd.OutOrStdout(), s)
	}

	cancel()
	if apiDone != nil {
		if apiErr := <-apiDone; apiErr != nil {
			log.Error("api server failed", "error", apiErr)
		}
	}
	return err
}

func newSampler(st *store.Store, cfg config.Config, log *slog.Logger) (*sampler.Sampler, error) {
	src := procsrc.NewSystem(
		procsrc.WithFocusCommand(cfg.Focus.Command),
		procsrc.WithNameCommand(cfg.Focus.NameCommand),
		procsrc.WithLogger(log),
	)
	return sampler.New(st, src,
		sampler.WithActiveDelay(cfg.Monitoring.ActiveDelay),
		sampler.WithFocusDelay(cfg.Monitoring.FocusDelay),
		sampler.WithOnlyVisible(cfg.Monitoring.OnlyVisible),
		sampler.WithLogger(log),
	)
}

// serveAPI starts srv and returns once it is listening. The returned channel
// yields the server's result after ctx is done.
func serveAPI(ctx context.Context, srv *api.Server, addr string, log *slog.Logger) (<-chan error, error) {
	done := make(chan error, 1)
	ready := make(chan net.Addr, 1)
	go func() {
		done <- srv.ListenAndServe(ctx, addr, func(a net.Addr) { ready <- a })
	}()

	select {
	case a := <-ready:
		log.Info("api listening", "addr", a.String())
		return done, nil
	case err := <-done:
		return nil, err
	}
}

func stopWatchDaemon(out io.Writer) error {
	running, err := sampler.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	spinner.SetWriter(out)
	spinner.Start()
	if err := sampler.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon(cmd *cobra.Command, loader *config.Loader, cfg config.Config) error {
	out := cmd.OutOrStdout()

	args, err := daemonArgs(cmd, loader, cfg)
	if err != nil {
		return err
	}
	outFile := filepath.Join(filepath.Dir(watchLogFile), "watch.out")

	spinner := output.NewSpinner("Starting daemon...")
	spinner.SetWriter(out)
	spinner.Start()
	if err := sampler.StartDaemon(watchPIDFile, outFile, args...); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Fprintf(out, "\nUsage recording daemon started\n")
	fmt.Fprintf(out, "  PID file: %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", watchLogFile)
	fmt.Fprintf(out, "  Database: %s\n", cfg.DB)
	if cfg.API.Listen != "" {
		fmt.Fprintf(out, "  API:      http://%s/api/v1\n", cfg.API.Listen)
	}
	fmt.Fprintf(out, "\nTo stop: apptime watch --stop\n")

	return nil
}

// daemonArgs rebuilds the command line for the detached child. Paths are
// made absolute so the child does not depend on the working directory.
func daemonArgs(cmd *cobra.Command, loader *config.Loader, cfg config.Config) ([]string, error) {
	abs := func(p string) (string, error) {
		a, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		return a, nil
	}

	db, err := abs(cfg.DB)
	if err != nil {
		return nil, err
	}
	pidFile, err := abs(watchPIDFile)
	if err != nil {
		return nil, err
	}
	logFile, err := abs(watchLogFile)
	if err != nil {
		return nil, err
	}

	args := []string{"watch", "--daemon-child",
		"--pid-file", pidFile,
		"--log-file", logFile,
		"--db", db,
	}
	if p := loader.Path(); p != "" {
		cfgFile, err := abs(p)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", cfgFile)
	}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}
	if watchListen != "" {
		args = append(args, "--listen", watchListen)
	}
	// Delays given on the command line win over the file in the child too.
	if f := cmd.Flags().Lookup("active-delay"); f != nil && f.Changed {
		args = append(args, "--active-delay", watchActiveDelay.String())
	}
	if f := cmd.Flags().Lookup("focus-delay"); f != nil && f.Changed {
		args = append(args, "--focus-delay", watchFocusDelay.String())
	}
	return args, nil
}

func runWatchForeground(ctx context.Context, out io.Writer, s *sampler.Sampler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sampler: %w", err)
	}

	active, focus := s.Delays()
	fmt.Fprintln(out, "✓ Sampler started")
	fmt.Fprintf(out, "Recording running applications every %s and the focused window every %s.\n", active, focus)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")
	fmt.Fprintln(out)

	spinner := output.NewSpinner("Recording").WithStatus(func() string {
		return recordingStatus(s.Stats())
	})
	spinner.SetWriter(out)
	spinner.Start()

	<-ctx.Done()
	s.Stop()
	spinner.StopWithMessage(fmt.Sprintf("Usage tracking stopped (%s)", recordingStatus(s.Stats())))

	return nil
}

// recordingStatus summarizes sampler progress for the foreground spinner.
func recordingStatus(st sampler.Stats) string {
	cycles := "cycles"
	if st.ActiveCycles == 1 {
		cycles = "cycle"
	}
	apps := "applications"
	if st.Applications == 1 {
		apps = "application"
	}
	return fmt.Sprintf("%d active %s, %d %s", st.ActiveCycles, cycles, st.Applications, apps)
}
