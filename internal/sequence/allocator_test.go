package sequence

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/harrison/seqwatch/internal/naming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorNext(t *testing.T) {
	a := NewAllocator(3, 0)

	name, err := a.Next(".jpg")
	require.NoError(t, err)
	assert.Equal(t, "001.jpg", name)

	name, err = a.Next(".png")
	require.NoError(t, err)
	assert.Equal(t, "002.png", name)
	assert.Equal(t, 2, a.Current())
}

func TestAllocatorExhausted(t *testing.T) {
	a := NewAllocator(2, 98)

	name, err := a.Next(".jpg")
	require.NoError(t, err)
	assert.Equal(t, "99.jpg", name)

	_, err = a.Next(".jpg")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 99, a.Current(), "counter must not advance past the limit")
}

func TestAllocatorConcurrentDistinct(t *testing.T) {
	a := NewAllocator(4, 0)

	const goroutines = 8
	const perGoroutine = 100

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				name, err := a.Next(".jpg")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				mu.Lock()
				if seen[name] {
					t.Errorf("duplicate name %s", name)
				}
				seen[name] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, goroutines*perGoroutine, a.Current())
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"005.jpg", "003.jpg", "0042.jpg", "007.png", "photo.jpg", "999notes.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "900.jpg"), 0755))

	m, err := naming.NewMatcher(naming.Options{Pattern: `\.jpg$`, Digits: 3})
	require.NoError(t, err)

	res, err := Seed(dir, m)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Max, "directories and other suffixes are ignored")
	assert.Equal(t, 2, res.Numbered)
	assert.Equal(t, []string{"0042.jpg"}, res.ForeignWidth)

	a := NewAllocator(3, res.Max)
	name, err := a.Next(".jpg")
	require.NoError(t, err)
	assert.Equal(t, "006.jpg", name)
}

func TestSeedEmptyAndMissing(t *testing.T) {
	m, err := naming.NewMatcher(naming.Options{Pattern: `\.jpg$`, Digits: 3})
	require.NoError(t, err)

	res, err := Seed(t.TempDir(), m)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Max)

	_, err = Seed(filepath.Join(t.TempDir(), "missing"), m)
	assert.Error(t, err)
}
