package models

import "time"

// BufferSnapshot is a point-in-time view of the intake buffer.
type BufferSnapshot struct {
	Depth    int            // Items queued and not yet extracted
	InFlight int            // Items extracted but not yet marked
	Capacity int            // Maximum queued items
	Failures map[string]int // Consecutive failure count per filename
}

// PoolStats holds cumulative worker pool counters.
type PoolStats struct {
	Processed int64
	Succeeded int64
	Failed    int64
	Batches   int64
	Restored  int64
	Orphaned  int64
}

// IntakeStats counts filesystem events seen by the watcher, keyed by kind
// (created, removed, written, admitted, rejected, duplicate, skipped_<reason>).
type IntakeStats map[string]int64

// StatsReport bundles the snapshots polled by the periodic reporter.
type StatsReport struct {
	At     time.Time
	Buffer BufferSnapshot
	Pool   PoolStats
	Intake IntakeStats
}
