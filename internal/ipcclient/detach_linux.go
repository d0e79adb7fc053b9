//go:build linux

package ipcclient

import (
	"os/exec"
	"syscall"
)

// setDetached starts the daemon in its own session so it survives the
// spawning process exiting (spec §4.3: "new session; stdio redirected").
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
