package filelock

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDirLock(t *testing.T) {
	dir := t.TempDir()
	lock := NewDirLock(dir)

	assert.Equal(t, filepath.Join(dir, LockFileName), lock.Path())
	assert.False(t, lock.Locked())
}

func TestTryLockCreatesStateDir(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), ".seqwatch")
	lock := NewDirLock(stateDir)

	require.NoError(t, lock.TryLock())
	defer lock.Unlock()

	assert.True(t, lock.Locked())
	assert.FileExists(t, lock.Path())
}

func TestTryLockRefusesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first := NewDirLock(dir)
	second := NewDirLock(dir)

	require.NoError(t, first.TryLock())

	err := second.TryLock()
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, second.Locked())

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock(), "lock is free after release")
	require.NoError(t, second.Unlock())
}

func TestAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, AtomicWrite(path, []byte("digits: 3\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "digits: 3\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestAtomicWriteOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, AtomicWrite(path, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestAtomicWriteCreateDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.yaml")

	require.NoError(t, AtomicWrite(path, []byte("x")))
	assert.FileExists(t, path)
}

func TestAtomicWriteNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	for i := 0; i < 5; i++ {
		require.NoError(t, AtomicWrite(path, []byte(fmt.Sprintf("v%d", i))))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.yaml", entries[0].Name())
}

func TestConcurrentAtomicWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, AtomicWrite(path, []byte(fmt.Sprintf("writer-%02d", i))))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Regexp(t, `^writer-\d{2}$`, string(data), "never a torn write")
}
