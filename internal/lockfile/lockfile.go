// Package lockfile guards a CalmPipe state directory so only one server
// opens its SQLite database at a time.
//
// The lock is an flock on a file inside the directory; the kernel drops it
// when the process exits, so a crashed server never leaves the directory
// locked, only a stale file behind.
package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "calmpipe.lock"

// ErrLocked is wrapped by LockError.
var ErrLocked = errors.New("state directory is locked by another CalmPipe instance")

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID     int
	Started time.Time
	Running bool
}

func (h Holder) String() string {
	if h.PID == 0 {
		return "unknown process"
	}
	state := "not running, stale lock file"
	if h.Running {
		state = "running"
	}
	if h.Started.IsZero() {
		return fmt.Sprintf("PID %d (%s)", h.PID, state)
	}
	return fmt.Sprintf("PID %d started %s (%s)", h.PID, h.Started.Format(time.RFC3339), state)
}

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// AcquireLock takes the exclusive lock on stateDir, creating the directory
// if needed. It fails immediately with a *LockError when another process
// holds it.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	path := filepath.Join(stateDir, LockFileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := ReadHolder(path)
		slog.Error("lockfile.AcquireLock: state directory already locked", "lock_path", path, "holder", holder.String())
		return nil, &LockError{LockPath: path, Holder: holder, Cause: err}
	}

	if err := writeHolder(file); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, err)
	}

	slog.Info("lockfile.AcquireLock: state directory locked", "lock_path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

func writeHolder(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.Seek(0, 0); err != nil {
		return err
	}
	content := fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(content); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("lockfile.writeHolder: sync failed", "error", err)
	}
	return nil
}

// Release drops the lock and removes the lock file. Calling it more than
// once is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("lockfile.Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	slog.Info("lockfile.Release: state directory unlocked", "lock_path", l.path)
	return nil
}

// LockError reports a lock held by another process.
type LockError struct {
	LockPath string
	Holder   Holder
	Cause    error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%v\n\nLock file: %s\nHeld by: %s\n\n"+
		"If no other CalmPipe server uses this state directory, remove the stale file with:\n  rm %s",
		ErrLocked, e.LockPath, e.Holder, e.LockPath)
}

// Is matches ErrLocked.
func (e *LockError) Is(target error) bool {
	return target == ErrLocked
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// ReadHolder parses a lock file. Missing or garbled fields are left zero.
func ReadHolder(path string) Holder {
	var h Holder
	file, err := os.Open(path)
	if err != nil {
		return h
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				h.PID = pid
			}
		case "started":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				h.Started = t
			}
		}
	}
	if h.PID > 0 {
		h.Running = processAlive(h.PID)
	}
	return h
}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
