// Package watcher turns fsnotify events on the watched directory into intake
// offers.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/harrison/seqwatch/internal/logger"
)

// FileOp represents the type of file operation
type FileOp int

const (
	// FileCreated indicates a new file appeared, including moves into the directory
	FileCreated FileOp = iota
	// FileWritten indicates a file was written to
	FileWritten
	// FileRemoved indicates a file was removed
	FileRemoved
	// FileRenamed indicates a file was moved away or renamed
	FileRenamed
)

// String returns the stats key for the operation
func (op FileOp) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileWritten:
		return "written"
	case FileRemoved:
		return "removed"
	case FileRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileEvent represents a file system event in the watched directory
type FileEvent struct {
	Path      string    // Absolute path to the file
	Op        FileOp    // Type of operation
	Timestamp time.Time // When the event was received
}

// Sink consumes events. Intake is the production implementation.
type Sink interface {
	Handle(ev FileEvent)
}

// Watcher watches a single directory, non-recursively.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
	logger  logger.Logger
}

// New creates a Watcher on dir. The directory must exist.
func New(dir string, log logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{watcher: fw, dir: dir, logger: log}, nil
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run delivers events to sink until ctx is cancelled or the underlying
// watcher closes. Watcher errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, sink Sink) error {
	defer w.watcher.Close()

	w.logger.LogInfo(fmt.Sprintf("Watching %s", w.dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev, ok := convert(event); ok {
				sink.Handle(ev)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			// fsnotify reports queue overflow here; events are lost, not fatal
			w.logger.LogWarn(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

// convert maps an fsnotify event to a FileEvent. Chmod is ignored.
func convert(event fsnotify.Event) (FileEvent, bool) {
	var op FileOp
	switch {
	case event.Has(fsnotify.Create):
		op = FileCreated
	case event.Has(fsnotify.Write):
		op = FileWritten
	case event.Has(fsnotify.Remove):
		op = FileRemoved
	case event.Has(fsnotify.Rename):
		op = FileRenamed
	default:
		return FileEvent{}, false
	}
	return FileEvent{Path: event.Name, Op: op, Timestamp: time.Now()}, true
}
