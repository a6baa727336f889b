package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chimed.lock")
	fl := NewFileLock(path)

	require.NoError(t, fl.TryLock())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, fl.Unlock())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "unlock removes the lock file")
}

func TestFileLock_SecondHolderRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chimed.lock")

	first := NewFileLock(path)
	require.NoError(t, first.TryLock())
	defer first.Unlock()

	second := NewFileLock(path)
	assert.Error(t, second.TryLock())
}

func TestFileLock_UnlockWithoutLockIsNoop(t *testing.T) {
	fl := NewFileLock(filepath.Join(t.TempDir(), "chimed.lock"))
	assert.NoError(t, fl.Unlock())
}

func TestFileLock_ReacquireAfterUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chimed.lock")
	fl := NewFileLock(path)

	require.NoError(t, fl.TryLock())
	require.NoError(t, fl.Unlock())
	require.NoError(t, fl.TryLock())
	require.NoError(t, fl.Unlock())
}
