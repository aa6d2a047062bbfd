//go:build windows

package subprocess

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {
	// Job objects would be the real equivalent; omitted here since the
	// bridge's target deployment is POSIX. Best effort: none.
}

func terminateGroup(pid int) error { return nil }
func killGroup(pid int) error      { return nil }
func interruptGroup(pid int) error { return nil }
