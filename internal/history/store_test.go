package history

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harrison/seqwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func result(name string, state models.RenameState, newName string, err error) models.RenameResult {
	return models.RenameResult{
		Item:     models.PendingItem{Path: "/w/" + name, Name: name},
		State:    state,
		NewName:  newName,
		Err:      err,
		Duration: 3 * time.Millisecond,
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name   string
		dbPath string
	}{
		{name: "in-memory database", dbPath: ":memory:"},
		{name: "file database", dbPath: filepath.Join(t.TempDir(), "history.db")},
		{name: "creates parent directories", dbPath: filepath.Join(t.TempDir(), "nested", "dir", "history.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath, nil)
			require.NoError(t, err)
			defer store.Close()

			assert.Equal(t, tt.dbPath, store.Path())
			assert.Empty(t, store.RunID())
		})
	}
}

func TestRecordRequiresRun(t *testing.T) {
	store := newTestStore(t)

	err := store.Record(context.Background(), result("a.jpg", models.StateCommitted, "001.jpg", nil))
	assert.ErrorIs(t, err, ErrNoRun)
	assert.ErrorIs(t, store.FinishRun(context.Background(), models.PoolStats{}), ErrNoRun)
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.StartRun(ctx, "/w", `(\.jpg$)`, 3, 5)
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	require.NoError(t, store.Record(ctx, result("a.jpg", models.StateCommitted, "006.jpg", nil)))
	require.NoError(t, store.Record(ctx, result("b.jpg", models.StateRestored, "", errors.New("disk full"))))
	orphan := result("c.jpg", models.StateOrphaned, "", errors.New("restore failed"))
	orphan.OrphanPath = "/w/.temp_rename/c.jpg"
	require.NoError(t, store.Record(ctx, orphan))

	entries, err := store.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "c.jpg", entries[0].OriginalName, "newest first")
	assert.Equal(t, "orphaned", entries[0].State)
	assert.Equal(t, "/w/.temp_rename/c.jpg", entries[0].OrphanPath)

	assert.Equal(t, "restored", entries[1].State)
	assert.Equal(t, "disk full", entries[1].ErrorMessage)
	assert.Empty(t, entries[1].NewName)

	assert.Equal(t, "006.jpg", entries[2].NewName)
	assert.Equal(t, int64(3), entries[2].DurationMs)
	assert.Equal(t, runID, entries[2].RunID)
	assert.WithinDuration(t, time.Now(), entries[2].RecordedAt, time.Minute)

	limited, err := store.Recent(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	orphans, err := store.Recent(ctx, 10, "orphaned")
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "c.jpg", orphans[0].OriginalName)
}

func TestFinishRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.StartRun(ctx, "/w", `(\.jpg$)`, 3, 0)
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, models.PoolStats{Processed: 4, Succeeded: 3, Failed: 1, Orphaned: 1}))

	runs, err := store.Runs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, "/w", run.Directory)
	assert.Equal(t, 3, run.Digits)
	assert.True(t, run.EndedAt.Valid)
	assert.Equal(t, int64(4), run.Processed)
	assert.Equal(t, int64(3), run.Succeeded)
	assert.Equal(t, int64(1), run.Orphaned)
}

func TestObserveResultConcurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.StartRun(ctx, "/w", `(\.jpg$)`, 3, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.ObserveResult(result("x.jpg", models.StateCommitted, "001.jpg", nil))
			store.ObserveBatch(1)
		}()
	}
	wg.Wait()

	entries, err := store.Recent(ctx, 100, "committed")
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewStore(path, nil)
	require.NoError(t, err)
	_, err = store.StartRun(ctx, "/w", `(\.jpg$)`, 3, 0)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, result("a.jpg", models.StateCommitted, "001.jpg", nil)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "001.jpg", entries[0].NewName)
}
