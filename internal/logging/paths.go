package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.docsift/logs, falling back to the temp
// directory when no home directory is available.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docsift", "logs")
	}
	return filepath.Join(home, ".docsift", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docsift.log")
}
