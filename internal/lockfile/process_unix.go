//go:build unix

package lockfile

import "syscall"

// processAlive reports whether pid names a live process, by sending the
// null signal (no-op, existence check only).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
