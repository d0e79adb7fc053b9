package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "daemon.pid")

	lock, ok, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected to acquire uncontended lock")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected pid file to exist: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected pid file removed after Release")
	}
}

func TestAcquireFailsWhenAlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.pid")

	first, ok, err := Acquire(path)
	if err != nil || !ok {
		t.Fatalf("first Acquire failed: ok=%v err=%v", ok, err)
	}
	defer first.Release()

	_, ok, err = Acquire(path)
	if err != nil {
		t.Fatalf("second Acquire returned error: %v", err)
	}
	if ok {
		t.Error("expected second Acquire to fail while first holds the lock")
	}
}

func TestGracefulShutdownRemovesSocketAndLock(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "acd.sock")
	if err := os.WriteFile(sockPath, []byte{}, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lockPath := filepath.Join(dir, "daemon.pid")
	lock, ok, err := Acquire(lockPath)
	if err != nil || !ok {
		t.Fatalf("Acquire failed: ok=%v err=%v", ok, err)
	}

	drained := make(chan struct{})
	close(drained)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	GracefulShutdown(ctx, drained, sockPath, lock)

	if _, err := os.Stat(sockPath); !os.IsNotExist(err) {
		t.Error("expected socket file removed")
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("expected pid file removed")
	}
}
