//go:build windows

package sampler

import (
	"os"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// terminate kills p; Windows has no SIGTERM for detached processes.
func terminate(p *os.Process) error {
	return p.Kill()
}
