package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harrison/seqwatch/internal/buffer"
	"github.com/harrison/seqwatch/internal/naming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOfferer struct {
	mu     sync.Mutex
	result buffer.Admission
	offers []string
}

func (f *fakeOfferer) Offer(path string) buffer.Admission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, path)
	return f.result
}

func testMatcher(t *testing.T) *naming.Matcher {
	t.Helper()
	m, err := naming.NewMatcher(naming.Options{
		Pattern:       naming.PatternFromExtensions("jpg"),
		Digits:        3,
		MaxNameLength: 255,
		ScratchName:   ".temp_rename",
	})
	require.NoError(t, err)
	return m
}

func created(path string) FileEvent {
	return FileEvent{Path: path, Op: FileCreated, Timestamp: time.Now()}
}

func TestIntakeOffersEligible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	off := &fakeOfferer{result: buffer.Admitted}
	in := NewIntake(IntakeConfig{DedupWindow: 10 * time.Second}, testMatcher(t), off, nil)

	in.Handle(created(path))

	assert.Equal(t, []string{path}, off.offers)
	stats := in.Stats()
	assert.Equal(t, int64(1), stats["created"])
	assert.Equal(t, int64(1), stats["admitted"])
}

func TestIntakeSkipsIneligible(t *testing.T) {
	dir := t.TempDir()
	off := &fakeOfferer{result: buffer.Admitted}
	in := NewIntake(IntakeConfig{}, testMatcher(t), off, nil)

	in.Handle(created(filepath.Join(dir, "notes.txt")))
	in.Handle(created(filepath.Join(dir, "001.jpg")))
	in.Handle(created(filepath.Join(dir, ".hidden.jpg")))
	in.Handle(created(filepath.Join(dir, ".temp_rename")))

	assert.Empty(t, off.offers)
	stats := in.Stats()
	assert.Equal(t, int64(4), stats["created"])
	assert.Equal(t, int64(1), stats["skipped_wrong_extension"])
	assert.Equal(t, int64(1), stats["skipped_already_numbered"])
	assert.Equal(t, int64(1), stats["skipped_hidden"])
	assert.Equal(t, int64(1), stats["skipped_scratch"])
}

func TestIntakeCountsOnlyNonCreate(t *testing.T) {
	off := &fakeOfferer{result: buffer.Admitted}
	in := NewIntake(IntakeConfig{}, testMatcher(t), off, nil)

	in.Handle(FileEvent{Path: "/w/a.jpg", Op: FileWritten})
	in.Handle(FileEvent{Path: "/w/a.jpg", Op: FileRemoved})
	in.Handle(FileEvent{Path: "/w/a.jpg", Op: FileRenamed})

	assert.Empty(t, off.offers)
	stats := in.Stats()
	assert.Equal(t, int64(1), stats["written"])
	assert.Equal(t, int64(1), stats["removed"])
	assert.Equal(t, int64(1), stats["renamed"])
}

func TestIntakeDedupWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	off := &fakeOfferer{result: buffer.RejectedDuplicate}
	in := NewIntake(IntakeConfig{DedupWindow: 10 * time.Second}, testMatcher(t), off, nil)
	now := time.Now()
	in.now = func() time.Time { return now }
	in.lastClear = now

	in.Handle(created(path))
	in.Handle(created(path))
	assert.Len(t, off.offers, 1)
	assert.Equal(t, int64(1), in.Stats()["duplicate"])

	// A size change is a different event.
	require.NoError(t, os.WriteFile(path, []byte("xyz"), 0644))
	in.Handle(created(path))
	assert.Len(t, off.offers, 2)

	// After the window the set is cleared.
	now = now.Add(11 * time.Second)
	in.Handle(created(path))
	assert.Len(t, off.offers, 3)
}

func TestIntakeDedupBounded(t *testing.T) {
	in := NewIntake(IntakeConfig{DedupWindow: time.Hour, MaxRecent: 2}, testMatcher(t), &fakeOfferer{}, nil)

	a := eventKey{path: "/w/a.jpg", op: FileCreated}
	b := eventKey{path: "/w/b.jpg", op: FileCreated}
	c := eventKey{path: "/w/c.jpg", op: FileCreated}

	assert.False(t, in.seen(a))
	assert.False(t, in.seen(b))
	assert.True(t, in.seen(b), "repeat caught while the set is full")
	assert.False(t, in.seen(c), "set cleared to make room")
	assert.Len(t, in.recent, 1)
	assert.False(t, in.seen(a))
	assert.True(t, in.seen(a))
}

func TestIntakeNameReusedAfterRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.jpg")

	off := &fakeOfferer{result: buffer.Admitted}
	in := NewIntake(IntakeConfig{DedupWindow: 10 * time.Second}, testMatcher(t), off, nil)

	// Scanners create the file empty and fill it afterwards.
	require.NoError(t, os.WriteFile(path, nil, 0644))
	in.Handle(created(path))

	require.NoError(t, os.Rename(path, filepath.Join(dir, "001.jpg")))
	in.Handle(FileEvent{Path: path, Op: FileRenamed, Timestamp: time.Now()})

	require.NoError(t, os.WriteFile(path, nil, 0644))
	in.Handle(created(path))

	assert.Equal(t, []string{path, path}, off.offers)
	assert.Zero(t, in.Stats()["duplicate"])
	assert.Equal(t, int64(2), in.Stats()["admitted"])
}

func TestIntakeNameReusedAfterRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.jpg")

	off := &fakeOfferer{result: buffer.Admitted}
	in := NewIntake(IntakeConfig{DedupWindow: 10 * time.Second}, testMatcher(t), off, nil)

	require.NoError(t, os.WriteFile(path, nil, 0644))
	in.Handle(created(path))
	in.Handle(created(path))
	require.Len(t, off.offers, 1, "repeat event before removal is a duplicate")

	require.NoError(t, os.Remove(path))
	in.Handle(FileEvent{Path: path, Op: FileRemoved, Timestamp: time.Now()})
	require.NoError(t, os.WriteFile(path, nil, 0644))
	in.Handle(created(path))

	assert.Len(t, off.offers, 2)
}

func TestIntakeDirectoryIgnored(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "album.jpg")
	require.NoError(t, os.Mkdir(sub, 0755))

	off := &fakeOfferer{result: buffer.Admitted}
	in := NewIntake(IntakeConfig{}, testMatcher(t), off, nil)
	in.Handle(created(sub))

	assert.Empty(t, off.offers)
}

func TestIntakeCountsRejections(t *testing.T) {
	dir := t.TempDir()
	off := &fakeOfferer{result: buffer.RejectedFull}
	in := NewIntake(IntakeConfig{}, testMatcher(t), off, nil)

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		in.Handle(created(filepath.Join(dir, name)))
	}

	assert.Equal(t, int64(3), in.Stats()["rejected_full"])
}

func TestIntakeStatsCopy(t *testing.T) {
	in := NewIntake(IntakeConfig{}, testMatcher(t), &fakeOfferer{}, nil)
	in.Handle(FileEvent{Path: "/w/a.jpg", Op: FileWritten})

	stats := in.Stats()
	stats["written"] = 100
	assert.Equal(t, int64(1), in.Stats()["written"])
}
