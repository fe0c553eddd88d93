package renamer

import (
	"io"
	"os"
)

// FileSystem is the subset of filesystem operations the renamer needs.
// Tests substitute it to force staging and commit failures.
type FileSystem interface {
	Rename(oldpath, newpath string) error
	Open(name string) (io.ReadCloser, error)
	Lstat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
	Remove(name string) error
}

// OSFileSystem is the FileSystem backed by package os.
type OSFileSystem struct{}

func (OSFileSystem) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

// Open opens name read-only; a file still held exclusively by a writer
// fails here on platforms that enforce sharing modes.
func (OSFileSystem) Open(name string) (io.ReadCloser, error) { return os.Open(name) }

func (OSFileSystem) Lstat(name string) (os.FileInfo, error) { return os.Lstat(name) }

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (OSFileSystem) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }

func (OSFileSystem) Remove(name string) error { return os.Remove(name) }
