//go:build linux

package platform

import "os"

// runtimeDir returns XDG_RUNTIME_DIR, falling back to TMPDIR/os.TempDir
// when unset (minimal containers, some CI runners).
func runtimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return v
	}
	return os.TempDir()
}
