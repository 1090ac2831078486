//go:build windows

package backend

import "os/exec"

// setProcessGroup is a no-op on Windows, which lacks Unix-style process
// groups; descendant processes may survive cancellation if they detach.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
