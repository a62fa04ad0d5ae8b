package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	if lock.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("unexpected lock path %q", lock.Path())
	}
	holder := ReadHolder(lock.Path())
	if holder.PID != os.Getpid() || !holder.Running || holder.Started.IsZero() {
		t.Errorf("unexpected holder %+v", holder)
	}
}

func TestAcquireLock_Conflict(t *testing.T) {
	dir := t.TempDir()
	lock1, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := AcquireLock(dir)
	if err == nil {
		lock2.Release()
		t.Fatal("expected second acquisition to fail")
	}
	if !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T", err)
	}
	if lockErr.Holder.PID != os.Getpid() {
		t.Errorf("expected holder PID %d, got %d", os.Getpid(), lockErr.Holder.PID)
	}
	if !strings.Contains(err.Error(), "rm ") {
		t.Errorf("error should explain how to clear a stale lock: %s", err)
	}
}

func TestRelease_AllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file should be removed on release")
	}

	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}
	again.Release()
}

func TestAcquireLock_StaleFileIsReused(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, []byte("pid=999999999\nstarted=garbage\n"), 0644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	holder := ReadHolder(path)
	if holder.PID != 999999999 || holder.Running || !holder.Started.IsZero() {
		t.Errorf("unexpected stale holder %+v", holder)
	}

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("stale file should not block acquisition: %v", err)
	}
	defer lock.Release()
	if got := ReadHolder(path); got.PID != os.Getpid() {
		t.Errorf("lock file not rewritten, holder %+v", got)
	}
}
