package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imring/apptime/internal/output"
	"github.com/imring/apptime/internal/sampler"
	"github.com/imring/apptime/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status and recording statistics",
	Long: `Display whether the recording daemon is running and what the database holds.

Shows:
  • Daemon running status and PID
  • Database location
  • Number of applications, intervals and ignore rules
  • First and last recorded instants`,
	Example: `  # Check status
  apptime status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return fmt.Errorf("failed to get PID file path: %w", err)
	}

	_, cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	running, err := sampler.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	daemon := output.DaemonState{Running: running, PIDFile: pidFile}
	if running {
		daemon.PID = sampler.DaemonPID(pidFile)
	}

	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		fmt.Fprint(out, output.RenderStatus(daemon, cfg.DB, store.Stats{}))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Nothing recorded yet. Run 'apptime watch --daemon' to start.")
		return nil
	}

	st, err := openExistingStore(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(commandContext(cmd))
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderStatus(daemon, cfg.DB, stats))

	if !running {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Recording is stopped. Run 'apptime watch --daemon' to resume.")
	}
	return nil
}
