package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/docsift/internal/config"
	"github.com/Aman-CERP/docsift/internal/scanner"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed away.
	OpRename
	// OpConfigChange indicates the corpus .docsift.yaml was modified.
	OpConfigChange
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpConfigChange:
		return "CONFIG_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is relative to the watched root.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Watcher defines the interface for file system watching.
type Watcher interface {
	// Start watches path recursively until Stop is called or ctx ends.
	Start(ctx context.Context, path string) error

	// Stop releases resources. Safe to call multiple times.
	Stop() error

	// Events returns debounced batches. Closed when the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns non-fatal watcher errors. Closed when the watcher stops.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 16
	EventBufferSize int

	// ExcludePatterns are scanner exclude patterns; excluded paths produce
	// no events.
	ExcludePatterns []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// pathFilter decides which paths are worth an event. It applies the same
// rules as the scanner so that watch mode reacts to exactly what a build
// would index.
type pathFilter struct {
	patterns []string
}

// skipDir reports whether a directory and its subtree are not watched.
func (f pathFilter) skipDir(relPath string) bool {
	return scanner.ShouldExcludeDir(relPath, f.patterns)
}

// skip reports whether an event for relPath is dropped.
func (f pathFilter) skip(relPath string, isDir bool) bool {
	if relPath == "." || relPath == "" {
		return true
	}
	for dir := filepath.Dir(relPath); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if f.skipDir(dir) {
			return true
		}
	}
	if isDir {
		return f.skipDir(relPath)
	}
	if isConfigFile(relPath) {
		return false
	}
	if _, ok := scanner.Classify(relPath); !ok {
		return true
	}
	// Sensitive names never reach the index, so their edits cannot change it.
	return scanner.ShouldExcludeFile(relPath, f.patterns) || scanner.IsSensitive(relPath)
}

// isConfigFile reports whether relPath is the corpus root configuration.
func isConfigFile(relPath string) bool {
	return relPath == config.ProjectConfigName
}
