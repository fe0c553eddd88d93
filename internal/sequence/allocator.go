// Package sequence allocates the numeric stems used for renamed files.
package sequence

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/harrison/seqwatch/internal/naming"
)

// ErrExhausted is returned once the counter no longer fits the stem width.
var ErrExhausted = errors.New("sequence exhausted for configured digit width")

// Allocator is a process-wide monotonic counter. The zero value is not usable;
// construct with NewAllocator.
type Allocator struct {
	mu      sync.Mutex
	counter int
	width   int
	limit   int
}

// NewAllocator returns an Allocator whose first Next yields start+1.
func NewAllocator(width, start int) *Allocator {
	limit := 1
	for i := 0; i < width; i++ {
		limit *= 10
	}
	return &Allocator{
		counter: start,
		width:   width,
		limit:   limit - 1,
	}
}

// Next increments the counter and returns the zero-padded stem plus suffix.
// A stem wider than the configured width would not be recognised as
// numbered, so the allocator refuses instead of growing.
func (a *Allocator) Next(suffix string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.counter >= a.limit {
		return "", fmt.Errorf("%w: %d digits", ErrExhausted, a.width)
	}
	a.counter++
	return fmt.Sprintf("%0*d%s", a.width, a.counter, suffix), nil
}

// Current returns the last value handed out (or the seed).
func (a *Allocator) Current() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counter
}

// Width returns the stem width.
func (a *Allocator) Width() int {
	return a.width
}

// SeedResult describes what a directory scan found.
type SeedResult struct {
	Max          int      // Highest exact-width stem, 0 if none
	Numbered     int      // Files recognised as already numbered
	ForeignWidth []string // Numeric names with a different width
}

// Seed scans dir for regular files named exactly <digits><pattern> and
// returns the highest stem found.
func Seed(dir string, m *naming.Matcher) (SeedResult, error) {
	var res SeedResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if n, ok := m.Stem(name); ok {
			res.Numbered++
			if n > res.Max {
				res.Max = n
			}
			continue
		}
		if m.ForeignWidth(name) {
			res.ForeignWidth = append(res.ForeignWidth, name)
		}
	}

	return res, nil
}
