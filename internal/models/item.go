package models

import (
	"path/filepath"
	"time"
)

// PendingItem is a file admitted to the intake buffer. It is passed by value:
// the buffer keeps no reference once a worker has extracted it.
type PendingItem struct {
	Path       string    // Absolute path in the watched directory
	Name       string    // Base name, the admission key
	AdmittedAt time.Time // When the buffer accepted the item
}

// NewPendingItem builds a PendingItem for path, deriving Name from it.
func NewPendingItem(path string) PendingItem {
	return PendingItem{
		Path:       path,
		Name:       filepath.Base(path),
		AdmittedAt: time.Now(),
	}
}
