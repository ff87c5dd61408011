package sampler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
)

// StartDaemon re-executes the current binary with args as a detached
// background process and records its pid in pidFile. The child's stdout and
// stderr go to outFile.
func StartDaemon(pidFile, outFile string, args ...string) error {
	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon already running (PID file: %s)", pidFile)
	}

	out, err := os.OpenFile(outFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open daemon output file: %w", err)
	}
	defer out.Close()

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = nil
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	pid := cmd.Process.Pid
	if err := writePIDFile(pidFile, pid); err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to release process: %w", err)
	}
	return nil
}

// RunDaemon runs the sampler until ctx is cancelled or SIGINT/SIGTERM
// arrives, then stops it and removes pidFile.
func (s *Sampler) RunDaemon(ctx context.Context, pidFile string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The parent wrote the pid already; rewrite it in case we were started
	// directly with --daemon-child.
	if err := writePIDFile(pidFile, os.Getpid()); err != nil {
		return err
	}

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sampler: %w", err)
	}

	<-ctx.Done()
	s.logger.Info("shutting down", "reason", context.Cause(ctx))
	s.Stop()

	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// StopDaemon asks the daemon recorded in pidFile to terminate.
func StopDaemon(pidFile string) error {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon not running (PID file not found)")
		}
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := terminate(proc); err != nil {
		return fmt.Errorf("failed to stop process %d: %w", pid, err)
	}
	return nil
}

// IsDaemonRunning reports whether the pid in pidFile is alive. A stale or
// malformed pidfile is removed.
func IsDaemonRunning(pidFile string) (bool, error) {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			_ = os.Remove(pidFile)
			return false, nil
		}
		return false, err
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil || !alive {
		_ = os.Remove(pidFile)
		return false, nil
	}
	return true, nil
}

// DaemonPID returns the pid recorded in pidFile, or 0 when there is none.
func DaemonPID(pidFile string) int {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return 0
	}
	return pid
}

func writePIDFile(pidFile string, pid int) error {
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func readPIDFile(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %w", &strconv.NumError{Func: "Atoi", Num: strconv.Itoa(pid), Err: strconv.ErrRange})
	}
	return pid, nil
}
