//go:build windows

package player

import (
	"os"
	"syscall"
)

func ownGroup() *syscall.SysProcAttr {
	return nil
}

func kill(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
