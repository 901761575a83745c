//go:build !windows

package lock

import (
	"errors"
	"fmt"
	"syscall"
)

// Alive sends signal 0 to pid. EPERM still means the process is
// alive, only owned by another user.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Terminate asks pid to stop with SIGTERM so it can release its lock
func Terminate(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}
