package renamer

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// Recovery reports what RecoverScratch did with each scratch file.
type Recovery struct {
	Restored []string         // Moved back to the watched directory
	InFlight []string         // Left alone, a worker is committing them
	Blocked  []string         // Left alone, the original name is taken
	Failed   map[string]error // Move back failed
}

// RecoverScratch moves files left in the scratch directory back to the
// watched directory under their original names. Files staged by an
// in-flight rename are skipped, so it is safe to call while workers run.
// Restored files reappear in the watched directory and are picked up again
// by the watcher if it is still running.
func (r *Renamer) RecoverScratch() (Recovery, error) {
	rec := Recovery{Failed: make(map[string]error)}

	entries, err := r.fs.ReadDir(r.scratch)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rec, nil
		}
		return rec, fmt.Errorf("failed to read scratch directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if r.isStaged(name) {
			rec.InFlight = append(rec.InFlight, name)
			continue
		}

		dest := filepath.Join(r.dir, name)
		if r.exists(dest) {
			rec.Blocked = append(rec.Blocked, name)
			continue
		}
		if err := r.fs.Rename(filepath.Join(r.scratch, name), dest); err != nil {
			rec.Failed[name] = err
			continue
		}
		rec.Restored = append(rec.Restored, name)
	}

	return rec, nil
}

// RemoveScratch deletes the scratch directory if it is empty. A non-empty
// directory is left in place so orphans are never lost.
func (r *Renamer) RemoveScratch() error {
	entries, err := r.fs.ReadDir(r.scratch)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read scratch directory: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("scratch directory %s not empty (%d entries)", r.scratch, len(entries))
	}
	return r.fs.Remove(r.scratch)
}
