//go:build windows

package lockfile

import "os"

// processAlive reports whether pid names a live process. Windows has no
// null-signal primitive, so this relies on os.FindProcess, which opens a
// handle to the process and fails if no process has that pid. A pid that
// has been reused by an unrelated process counts as alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
