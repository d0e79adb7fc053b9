// Package lifecycle implements daemon startup/shutdown mechanics (spec
// §4.2, §4.7): single-daemon enforcement via a PID file lock, OS signal
// handling, and the ordered graceful-shutdown sequence. The lock/PID-file
// shape is grounded on the teacher corpus's daemon lock pattern (see
// other_examples mini-msg's LockInfo/acquireLock), adapted here to use
// gofrs/flock's advisory file lock instead of a raw syscall.Kill probe so
// staleness detection works uniformly across platforms.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

// Lock guards the daemon's PID file, preventing a second daemon instance
// from starting while one is already responsive (spec §4.2).
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire attempts to take an exclusive lock on path, creating parent
// directories as needed. ok is false if another process already holds the
// lock (a live daemon is running); the caller should exit 1 in that case
// (spec §6 exit codes).
func Acquire(path string) (*Lock, bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, false, fmt.Errorf("create state dir: %w", err)
	}
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, false, nil
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600); err != nil {
		fl.Unlock()
		return nil, false, fmt.Errorf("write pid file: %w", err)
	}
	return &Lock{path: path, fl: fl}, true, nil
}

// Release unlocks and removes the PID file.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	return os.Remove(l.path)
}

// Signals carries the two signal conditions the daemon cares about:
// shutdown (SIGINT/SIGTERM) and reload (SIGHUP).
type Signals struct {
	Shutdown <-chan os.Signal
	Reload   <-chan os.Signal
}

// Watch installs signal handlers and returns channels the caller selects
// on. Call stop() to release the underlying OS hooks.
func Watch() (Signals, func()) {
	shutdown := make(chan os.Signal, 1)
	reload := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reload, syscall.SIGHUP)
	stop := func() {
		signal.Stop(shutdown)
		signal.Stop(reload)
	}
	return Signals{Shutdown: shutdown, Reload: reload}, stop
}

// FlushDeadline bounds how long graceful shutdown waits for pending writes
// to drain before unlinking the socket file (spec §4.7: "1s deadline").
const FlushDeadline = 1 * time.Second

// GracefulShutdown runs the ordered cleanup from spec §4.7 steps 3-5: wait
// up to FlushDeadline for drained to close (signalling all writers have
// flushed), then unlink the socket and PID file. Steps 1-2 (stop accepting
// connections, notify subscribers) are the caller's responsibility since
// they require access to the listener and broadcaster.
func GracefulShutdown(ctx context.Context, drained <-chan struct{}, socketPath string, lock *Lock) {
	select {
	case <-drained:
	case <-time.After(FlushDeadline):
	case <-ctx.Done():
	}
	os.Remove(socketPath)
	if lock != nil {
		lock.Release()
	}
}
