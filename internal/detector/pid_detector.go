//go:build !windows

package detector

import (
	"errors"
	"fmt"
	"syscall"
)

// PIDAlive returns true if a process with the given pid exists.
// EPERM counts as alive: the process exists but belongs to another user,
// so the supervisor must not treat it as dead and attempt a restart.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// PIDDetector detects by a provided PID number.
type PIDDetector struct{ PID int }

func (d PIDDetector) Alive() (bool, error) { return PIDAlive(d.PID), nil }
func (d PIDDetector) Describe() string     { return fmt.Sprintf("pid:%d", d.PID) }
