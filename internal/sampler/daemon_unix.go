//go:build !windows

package sampler

import (
	"os"
	"syscall"
)

// detachAttr puts the child in its own session so it outlives the terminal.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
