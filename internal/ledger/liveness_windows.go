//go:build windows

package ledger

import "os"

// DefaultProber checks process liveness. On Windows os.FindProcess
// opens a handle to the process, which fails for dead pids.
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
	_ = proc.Release()
	return true
}
