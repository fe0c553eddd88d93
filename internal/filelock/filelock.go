// Package filelock guards a watched directory against a second seqwatch
// process and writes small state files atomically.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the state directory of the watched tree.
const LockFileName = "watch.lock"

// ErrLocked means another process holds the lock.
var ErrLocked = errors.New("directory is already being watched")

// DirLock is an exclusive, non-blocking lock on a watched directory.
// Two watchers on one directory would hand out the same numbers.
type DirLock struct {
	flock *flock.Flock
	path  string
}

// NewDirLock creates a lock backed by stateDir/watch.lock. The lock is not
// acquired until TryLock.
func NewDirLock(stateDir string) *DirLock {
	path := filepath.Join(stateDir, LockFileName)
	return &DirLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Path returns the lock file path.
func (dl *DirLock) Path() string {
	return dl.path
}

// TryLock acquires the lock without blocking. It returns ErrLocked when
// another process already holds it.
func (dl *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(dl.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := dl.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to try lock on %s: %w", dl.path, err)
	}
	if !acquired {
		return fmt.Errorf("%w (lock %s)", ErrLocked, dl.path)
	}
	return nil
}

// Locked reports whether this DirLock currently holds the lock.
func (dl *DirLock) Locked() bool {
	return dl.flock.Locked()
}

// Unlock releases the lock. The lock file itself is left in place.
func (dl *DirLock) Unlock() error {
	if err := dl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", dl.path, err)
	}
	return nil
}

// AtomicWrite writes data to path through a temp file in the same directory
// and a rename, so readers never see a partial file.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}
