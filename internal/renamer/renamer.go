// Package renamer moves admitted files to their numbered names in two phases.
//
// A single rename inside the watched directory produces an event the watcher
// could mistake for a new file. Instead each file is first staged into a
// scratch directory under its original name, which removes it from the
// watched namespace, and only then committed to its numbered name:
//
//	Admitted -> Staged -> Committed
//	                   -> Restored  (commit failed, moved back)
//	                   -> Orphaned  (restore failed too, left in scratch)
//	Admitted -> Failed             (ineligible, missing, inaccessible, stage failed)
package renamer

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/models"
	"github.com/harrison/seqwatch/internal/naming"
	"github.com/harrison/seqwatch/internal/sequence"
)

var (
	// ErrIneligible is returned when the name fails the matcher's rules or the
	// path is not a regular file.
	ErrIneligible = errors.New("file is not eligible for renaming")
	// ErrNoNumberedForm is returned when no numbered name built from the file
	// would be recognised as numbered, so renaming it would loop.
	ErrNoNumberedForm = errors.New("no numbered form matches the suffix pattern")
	// ErrMissing is returned when the file disappeared before staging.
	ErrMissing = errors.New("file no longer exists")
	// ErrInaccessible is returned when every access probe failed.
	ErrInaccessible = errors.New("file is not accessible")
	// ErrScratchOccupied is returned when the scratch directory already holds a
	// file of the same name, usually an earlier orphan.
	ErrScratchOccupied = errors.New("scratch slot already occupied")
	// ErrDestinationExists is returned when too many numbered names were taken.
	ErrDestinationExists = errors.New("destination name already taken")
	// ErrNameTooLong is returned when the numbered name exceeds the length limit.
	ErrNameTooLong = errors.New("new name exceeds length limit")
	// ErrPanic wraps a panic recovered while processing one item.
	ErrPanic = errors.New("panic while renaming")
)

// DefaultMaxCollisions bounds how many occupied destination names one commit
// skips before giving up.
const DefaultMaxCollisions = 10

// Config holds renamer settings.
type Config struct {
	Dir           string        // Watched directory
	ScratchDir    string        // Staging directory; relative paths resolve against Dir
	ProbeAttempts int           // Accessibility probe attempts, at least 1
	ProbeDelay    time.Duration // Delay between probe attempts
	MaxCollisions int           // Occupied destination names skipped before giving up
}

// Option customizes a Renamer.
type Option func(*Renamer)

// WithFileSystem replaces the OS filesystem.
func WithFileSystem(fsys FileSystem) Option {
	return func(r *Renamer) {
		r.fs = fsys
	}
}

// Renamer performs two-phase renames. It is safe for concurrent use; workers
// never collide in the scratch directory because admission dedups by name.
type Renamer struct {
	fs      FileSystem
	matcher *naming.Matcher
	seq     *sequence.Allocator
	logger  logger.Logger

	dir           string
	scratch       string
	probeAttempts int
	probeDelay    time.Duration
	maxCollisions int

	mu     sync.Mutex
	staged map[string]struct{}
}

// New creates a Renamer and ensures the scratch directory exists. matcher may
// be nil for a Renamer used only for scratch recovery; Process then fails
// every item.
func New(cfg Config, matcher *naming.Matcher, seq *sequence.Allocator, log logger.Logger, opts ...Option) (*Renamer, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	scratch := cfg.ScratchDir
	if !filepath.IsAbs(scratch) {
		scratch = filepath.Join(cfg.Dir, scratch)
	}

	r := &Renamer{
		fs:            OSFileSystem{},
		matcher:       matcher,
		seq:           seq,
		logger:        log,
		dir:           cfg.Dir,
		scratch:       filepath.Clean(scratch),
		probeAttempts: max(cfg.ProbeAttempts, 1),
		probeDelay:    cfg.ProbeDelay,
		maxCollisions: max(cfg.MaxCollisions, 0),
		staged:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.fs.MkdirAll(r.scratch, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory %s: %w", r.scratch, err)
	}

	return r, nil
}

// ScratchDir returns the absolute staging directory.
func (r *Renamer) ScratchDir() string {
	return r.scratch
}

// Process runs item through the state machine to a terminal state. It never
// panics; a panic inside one item becomes a failed result, and a file that
// was already staged is put back first.
func (r *Renamer) Process(item models.PendingItem) (result models.RenameResult) {
	op := &renameOp{
		r:        r,
		item:     item,
		state:    models.StateAdmitted,
		original: item.Path,
		staged:   filepath.Join(r.scratch, item.Name),
		start:    time.Now(),
	}

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, p)
			if op.state == models.StateStaged {
				op.restore(err)
			} else {
				op.fail(err)
			}
		}
		r.release(item.Name)
		result = op.result()
	}()

	for !op.state.Terminal() {
		switch op.state {
		case models.StateAdmitted:
			op.stage()
		case models.StateStaged:
			op.commit()
		}
	}
	return
}

// StagedNames returns the names currently staged by in-flight renames.
func (r *Renamer) StagedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.staged))
	for name := range r.staged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Renamer) hold(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged[name] = struct{}{}
}

func (r *Renamer) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.staged, name)
}

func (r *Renamer) isStaged(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.staged[name]
	return ok
}

// probe opens path for reading, retrying while a writer may still hold it.
func (r *Renamer) probe(path string) error {
	var lastErr error
	for attempt := 1; attempt <= r.probeAttempts; attempt++ {
		f, err := r.fs.Open(path)
		if err == nil {
			f.Close()
			return nil
		}
		lastErr = err
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissing, filepath.Base(path))
		}

		r.logger.LogDebug(fmt.Sprintf("Access probe failed for %s (attempt %d/%d): %v", filepath.Base(path), attempt, r.probeAttempts, err))
		if attempt < r.probeAttempts {
			time.Sleep(r.probeDelay)
		}
	}
	return fmt.Errorf("%w: %v", ErrInaccessible, lastErr)
}

func (r *Renamer) exists(path string) bool {
	_, err := r.fs.Lstat(path)
	return err == nil
}

// renameOp carries one item through the state machine.
type renameOp struct {
	r        *Renamer
	item     models.PendingItem
	state    models.RenameState
	original string
	staged   string
	suffix   string
	newName  string
	err      error
	start    time.Time
}

func (op *renameOp) transition(to models.RenameState) {
	op.r.logger.LogTrace(fmt.Sprintf("%s: %s -> %s", op.item.Name, op.state, to))
	op.state = to
}

func (op *renameOp) fail(err error) {
	op.err = err
	op.transition(models.StateFailed)
}

// stage validates the item and moves it into the scratch directory.
func (op *renameOp) stage() {
	r := op.r

	if r.matcher == nil {
		op.fail(fmt.Errorf("%w: no suffix pattern configured", ErrIneligible))
		return
	}
	if verdict := r.matcher.Classify(op.item.Name); verdict != naming.Eligible {
		op.fail(fmt.Errorf("%w: %s", ErrIneligible, verdict))
		return
	}
	suffix, ok := r.matcher.Suffix(op.item.Name)
	if !ok {
		op.fail(fmt.Errorf("%w: %s", ErrNoNumberedForm, op.item.Name))
		return
	}
	op.suffix = suffix

	info, err := r.fs.Lstat(op.original)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			op.fail(fmt.Errorf("%w: %s", ErrMissing, op.item.Name))
			return
		}
		op.fail(fmt.Errorf("stat %s: %w", op.item.Name, err))
		return
	}
	if !info.Mode().IsRegular() {
		op.fail(fmt.Errorf("%w: not a regular file", ErrIneligible))
		return
	}

	if err := r.probe(op.original); err != nil {
		op.fail(err)
		return
	}

	if r.exists(op.staged) {
		op.fail(fmt.Errorf("%w: %s", ErrScratchOccupied, op.staged))
		return
	}

	r.hold(op.item.Name)
	if err := r.fs.Rename(op.original, op.staged); err != nil {
		r.release(op.item.Name)
		op.fail(fmt.Errorf("stage %s: %w", op.item.Name, err))
		return
	}

	op.transition(models.StateStaged)
}

// commit allocates the next number and moves the staged file into place.
// Occupied destinations are skipped up to MaxCollisions times.
func (op *renameOp) commit() {
	r := op.r
	dir := filepath.Dir(op.original)

	for skipped := 0; ; skipped++ {
		newName, err := r.seq.Next(op.suffix)
		if err != nil {
			op.restore(err)
			return
		}
		if limit := r.matcher.MaxNameLength(); limit > 0 && len(newName) > limit {
			op.restore(fmt.Errorf("%w: %s", ErrNameTooLong, newName))
			return
		}

		dest := filepath.Join(dir, newName)
		if r.exists(dest) {
			if skipped >= r.maxCollisions {
				op.restore(fmt.Errorf("%w: %s", ErrDestinationExists, newName))
				return
			}
			r.logger.LogWarn(fmt.Sprintf("Destination %s already exists, skipping number", newName))
			continue
		}

		if err := r.fs.Rename(op.staged, dest); err != nil {
			op.restore(fmt.Errorf("commit %s -> %s: %w", op.item.Name, newName, err))
			return
		}

		op.newName = newName
		op.transition(models.StateCommitted)
		return
	}
}

// restore moves a staged file back to its original name after cause. If that
// fails, or the original name has been reused meanwhile, the file stays in
// scratch as an orphan.
func (op *renameOp) restore(cause error) {
	op.err = cause

	if op.r.exists(op.original) {
		op.err = fmt.Errorf("%w; restore skipped: original name reused", cause)
		op.transition(models.StateOrphaned)
		return
	}
	if err := op.r.fs.Rename(op.staged, op.original); err != nil {
		op.err = fmt.Errorf("%w; restore failed: %v", cause, err)
		op.transition(models.StateOrphaned)
		return
	}
	op.transition(models.StateRestored)
}

func (op *renameOp) result() models.RenameResult {
	res := models.RenameResult{
		Item:     op.item,
		State:    op.state,
		NewName:  op.newName,
		Err:      op.err,
		Duration: time.Since(op.start),
	}
	if op.state == models.StateOrphaned {
		res.OrphanPath = op.staged
	}
	return res
}
