//go:build !linux

package ipcclient

import "os/exec"

// setDetached is a no-op on platforms without Setsid-style session
// detachment support in this codebase.
func setDetached(cmd *exec.Cmd) {}
