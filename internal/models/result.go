package models

import "time"

// RenameState is a position in the two-phase rename state machine.
//
//	Admitted -> Staged -> Committed
//	                   -> Restored  (commit failed, original name put back)
//	                   -> Orphaned  (commit and restore failed, file left in scratch)
//	Admitted -> Failed             (rejected before staging)
type RenameState int

const (
	StateAdmitted RenameState = iota
	StateStaged
	StateCommitted
	StateRestored
	StateOrphaned
	StateFailed
)

// String returns a human-readable representation of the state
func (s RenameState) String() string {
	switch s {
	case StateAdmitted:
		return "admitted"
	case StateStaged:
		return "staged"
	case StateCommitted:
		return "committed"
	case StateRestored:
		return "restored"
	case StateOrphaned:
		return "orphaned"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible from s.
func (s RenameState) Terminal() bool {
	switch s {
	case StateCommitted, StateRestored, StateOrphaned, StateFailed:
		return true
	default:
		return false
	}
}

// RenameResult is the outcome of processing a single PendingItem.
type RenameResult struct {
	Item       PendingItem   // The item that was processed
	State      RenameState   // Terminal state reached
	NewName    string        // Final name, set when State is StateCommitted
	OrphanPath string        // Scratch path, set when State is StateOrphaned
	Err        error         // Cause of failure, nil on success
	Duration   time.Duration // Time spent in the renamer
}

// Succeeded reports whether the file was committed under its new name.
func (r RenameResult) Succeeded() bool {
	return r.State == StateCommitted
}
