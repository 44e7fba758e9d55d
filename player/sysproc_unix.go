//go:build !windows

package player

import (
	"errors"
	"os"
	"syscall"
)

// ownGroup starts the player in a new process group so helpers it spawns share its fate.
func ownGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// kill signals the player's whole process group, then the player itself.
func kill(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return p.Kill()
	}
	return nil
}
