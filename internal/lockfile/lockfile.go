// Package lockfile guards a StreamAgent state directory against a second
// process.
//
// Two processes driving the same characters would post duplicate replies and
// race on the cycle store, so the state directory is held with an exclusive
// flock for the life of the process. The kernel drops the flock when the
// process dies, so a crash never leaves the directory locked.
package lockfile

import (
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

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "streamagent.lock"

// ErrLocked is matched by errors.Is when another process holds the directory.
var ErrLocked = errors.New("state directory locked by another StreamAgent process")

// Info is what a holder records in the lock file.
type Info struct {
	PID     int
	Started time.Time
	Agents  []string
}

func (i Info) encode() string {
	return fmt.Sprintf("pid=%d\nstarted=%s\nagents=%s\n", i.PID, i.Started.UTC().Format(time.RFC3339), strings.Join(i.Agents, ","))
}

func parseInfo(content string) Info {
	var info Info
	for _, line := range strings.Split(content, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(val)
		case "started":
			info.Started, _ = time.Parse(time.RFC3339, val)
		case "agents":
			if val != "" {
				info.Agents = strings.Split(val, ",")
			}
		}
	}
	return info
}

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock on stateDir, creating the directory if
// needed. agents is recorded for the benefit of whoever hits the lock next.
func Acquire(stateDir string, agents []string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("Acquire: locking state directory", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	// O_TRUNC would wipe the holder's info before we know we own the lock.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lockErr := &LockError{LockPath: lockPath, Holder: describeHolder(lockPath), Cause: err}
		slog.Error("Acquire: state directory already locked", "lock_path", lockPath, "holder", lockErr.Holder)
		return nil, lockErr
	}

	info := Info{PID: os.Getpid(), Started: time.Now(), Agents: agents}
	if err := writeInfo(file, info); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("Acquired state directory lock", "lock_path", lockPath, "pid", info.PID)
	return &Lock{file: file, path: lockPath}, nil
}

func writeInfo(f *os.File, info Info) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(info.encode()), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("writeInfo: sync failed", "error", err, "lock_path", f.Name())
	}
	return nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and removes the lock file. Safe to call twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// remove first so a waiting process never sees our stale info
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}
	var errs []error
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, fmt.Errorf("unlock: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	l.file = nil
	slog.Info("Released state directory lock", "lock_path", l.path)
	return errors.Join(errs...)
}

// LockError reports who holds a state directory.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("another StreamAgent process is using this state directory (lock file %s)", e.LockPath)
	if e.Holder != "" {
		msg += ": " + e.Holder
	}
	return msg + fmt.Sprintf("; if no such process exists, remove %s and retry", e.LockPath)
}

func (e *LockError) Unwrap() error { return e.Cause }

func (e *LockError) Is(target error) bool { return target == ErrLocked }

func describeHolder(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil || len(data) == 0 {
		return ""
	}
	info := parseInfo(string(data))
	if info.PID <= 0 {
		return ""
	}
	state := "running"
	if !isProcessRunning(info.PID) {
		state = "not running, stale lock"
	}
	desc := fmt.Sprintf("PID %d (%s)", info.PID, state)
	if len(info.Agents) > 0 {
		desc += " agents " + strings.Join(info.Agents, ",")
	}
	if !info.Started.IsZero() {
		desc += " since " + info.Started.Format(time.RFC3339)
	}
	return desc
}

// isProcessRunning sends signal 0, which checks existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
