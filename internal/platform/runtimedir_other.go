//go:build !linux

package platform

import "os"

// runtimeDir falls back to TMPDIR on platforms without XDG_RUNTIME_DIR
// conventions (macOS, BSDs).
func runtimeDir() string {
	return os.TempDir()
}
