// Package buffer implements the intake buffer: a bounded queue of pending
// files with per-filename admission dedup and a retry ledger.
//
// All state is private to Buffer and mutated under one mutex. Extractors wait
// on a broadcast channel that is closed and replaced on every admission, which
// lets ExtractBatch bound its wait with a timer and a context at the same time.
package buffer

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrison/seqwatch/internal/models"
)

// Admission is the outcome of offering a path to the buffer.
type Admission int

const (
	// Admitted means the item was queued
	Admitted Admission = iota
	// RejectedFull means the queue is at capacity
	RejectedFull
	// RejectedDuplicate means the filename is already queued or in flight
	RejectedDuplicate
	// RejectedRetryCap means the filename failed too many times
	RejectedRetryCap
	// RejectedClosed means the buffer no longer accepts items
	RejectedClosed
)

// String returns the stats key for the admission outcome
func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case RejectedFull:
		return "rejected_full"
	case RejectedDuplicate:
		return "rejected_duplicate"
	case RejectedRetryCap:
		return "rejected_retry_cap"
	case RejectedClosed:
		return "rejected_closed"
	default:
		return "rejected_unknown"
	}
}

// Config holds buffer limits.
type Config struct {
	Capacity   int // Maximum queued items
	MaxRetries int // Failures after which a filename is refused
}

// Buffer is the intake monitor shared by the watcher and the workers.
type Buffer struct {
	mu       sync.Mutex
	queue    []models.PendingItem
	admitted map[string]struct{}
	failures map[string]int
	wake     chan struct{}
	closed   bool

	capacity   int
	maxRetries int
}

// New creates an empty Buffer.
func New(cfg Config) *Buffer {
	return &Buffer{
		queue:      make([]models.PendingItem, 0, cfg.Capacity),
		admitted:   make(map[string]struct{}),
		failures:   make(map[string]int),
		wake:       make(chan struct{}),
		capacity:   cfg.Capacity,
		maxRetries: cfg.MaxRetries,
	}
}

// Admit queues path and reports whether it was accepted. A rejected path
// leaves the buffer untouched.
func (b *Buffer) Admit(path string) bool {
	return b.Offer(path) == Admitted
}

// Offer is Admit with the rejection reason.
func (b *Buffer) Offer(path string) Admission {
	name := filepath.Base(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return RejectedClosed
	}
	if len(b.queue) >= b.capacity {
		return RejectedFull
	}
	if _, ok := b.admitted[name]; ok {
		return RejectedDuplicate
	}
	if b.maxRetries > 0 && b.failures[name] >= b.maxRetries {
		return RejectedRetryCap
	}

	b.queue = append(b.queue, models.PendingItem{Path: path, Name: name, AdmittedAt: time.Now()})
	b.admitted[name] = struct{}{}
	b.broadcast()

	return Admitted
}

// broadcast wakes every waiting extractor. Caller must hold mu.
func (b *Buffer) broadcast() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// ExtractBatch removes up to maxItems items in admission order.
//
// It returns as soon as maxItems are collected, timeout has elapsed since the
// call, ctx is cancelled, or the buffer is closed, whichever comes first. The
// batch may be empty. Extracted items stay in the admission set (in flight)
// until MarkSuccess or MarkFailed.
func (b *Buffer) ExtractBatch(ctx context.Context, maxItems int, timeout time.Duration) []models.PendingItem {
	if maxItems <= 0 || ctx.Err() != nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	batch := make([]models.PendingItem, 0, maxItems)
	for {
		b.mu.Lock()
		n := min(maxItems-len(batch), len(b.queue))
		if n > 0 {
			batch = append(batch, b.queue[:n]...)
			clear(b.queue[:n])
			b.queue = b.queue[n:]
		}
		wake := b.wake
		closed := b.closed
		b.mu.Unlock()

		if len(batch) >= maxItems || closed {
			return batch
		}

		select {
		case <-ctx.Done():
			return batch
		case <-timer.C:
			return batch
		case <-wake:
		}
	}
}

// MarkSuccess releases name from the admission set and clears its ledger entry.
func (b *Buffer) MarkSuccess(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.admitted, name)
	delete(b.failures, name)
}

// MarkFailed releases name from the admission set and counts the failure.
func (b *Buffer) MarkFailed(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.admitted, name)
	b.failures[name]++
}

// Failures returns the consecutive failure count for name.
func (b *Buffer) Failures(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[name]
}

// Snapshot returns a copy of the buffer's counters.
func (b *Buffer) Snapshot() models.BufferSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	failures := make(map[string]int, len(b.failures))
	for name, n := range b.failures {
		failures[name] = n
	}

	return models.BufferSnapshot{
		Depth:    len(b.queue),
		InFlight: len(b.admitted) - len(b.queue),
		Capacity: b.capacity,
		Failures: failures,
	}
}

// Depth returns the number of queued items.
func (b *Buffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close stops admission and wakes all waiting extractors. Queued items can
// still be extracted. Close is idempotent.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.broadcast()
}
