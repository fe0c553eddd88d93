package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirName holds per-directory state: config, lock, history.
const StateDirName = ".seqwatch"

// StateDir returns the state directory for a watched directory.
func StateDir(dir string) string {
	return filepath.Join(dir, StateDirName)
}

// ConfigPath returns the config file location for a watched directory.
func ConfigPath(dir string) string {
	return filepath.Join(StateDir(dir), "config.yaml")
}

// ResolvePath makes p absolute, resolving relative paths against the
// watched directory rather than the working directory.
func ResolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// ResolveWatchDir validates the directory argument and returns it absolute.
// An empty argument means the current working directory.
func ResolveWatchDir(arg string) (string, error) {
	if arg == "" {
		arg = "."
	}
	dir, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory %s does not exist", dir)
		}
		return "", fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}
