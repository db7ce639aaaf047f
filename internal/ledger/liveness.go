//go:build !windows

package ledger

import (
	"os"
	"syscall"
)

// DefaultProber checks process liveness with signal 0, which performs
// the permission and existence checks without delivering anything.
type DefaultProber struct{}

// Alive reports whether pid names a running process.
func (DefaultProber) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
