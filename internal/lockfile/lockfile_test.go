package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesHolderInfo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	lock, err := Acquire(dir, []string{"Nova", "Pix"})
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(filepath.Join(dir, LockFileName))
	require.NoError(t, err)
	info := parseInfo(string(data))
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, []string{"Nova", "Pix"}, info.Agents)
	assert.WithinDuration(t, time.Now(), info.Started, time.Minute)
}

func TestAcquireConflict(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir, []string{"Nova"})
	require.NoError(t, err)
	defer first.Release()

	second, err := Acquire(dir, nil)
	if err == nil {
		second.Release()
		t.Fatal("second acquisition should fail")
	}
	assert.ErrorIs(t, err, ErrLocked)
	var lockErr *LockError
	require.True(t, errors.As(err, &lockErr))
	assert.Contains(t, lockErr.Holder, "PID "+strconv.Itoa(os.Getpid())+" (running)")
	assert.Contains(t, lockErr.Holder, "agents Nova")
	assert.Contains(t, err.Error(), dir)

	// the failed attempt must not clobber the holder's info
	data, err := os.ReadFile(first.Path())
	require.NoError(t, err)
	assert.Equal(t, []string{"Nova"}, parseInfo(string(data)).Agents)
}

func TestReleaseAndReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, nil)
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	_, err = os.Stat(filepath.Join(dir, LockFileName))
	assert.True(t, os.IsNotExist(err), "lock file removed on release")
	assert.NoError(t, lock.Release(), "second release is a no-op")

	again, err := Acquire(dir, nil)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name    string
		content string
		pid     int
		agents  []string
	}{
		{"full", "pid=12345\nstarted=2026-05-01T09:00:00Z\nagents=a,b\n", 12345, []string{"a", "b"}},
		{"pid only", "pid=67890\n", 67890, nil},
		{"garbage", "hello world", 0, nil},
		{"bad pid", "pid=abc\nagents=\n", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := parseInfo(tt.content)
			assert.Equal(t, tt.pid, info.PID)
			assert.Equal(t, tt.agents, info.Agents)
		})
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !isProcessRunning(os.Getpid()) {
		t.Error("own process should be detected as running")
	}
}
