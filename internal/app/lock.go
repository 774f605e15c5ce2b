package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// BuildLockName is the lock file created in the data directory while a
// build runs.
const BuildLockName = ".build.lock"

// DefaultBuildLockWait bounds how long a build waits for readers that are
// reloading the index to let go of the lock.
const DefaultBuildLockWait = 5 * time.Second

const lockRetryDelay = 50 * time.Millisecond

// BuildLock is a cross-process lock around the index files. A build holds
// it exclusively; a process reloading a newer build holds it shared. Two
// docsift processes sharing a data directory never rebuild at once, and a
// reader never loads a half-written build.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock creates a lock at <dataDir>/.build.lock.
func NewBuildLock(dataDir string) *BuildLock {
	lockPath := filepath.Join(dataDir, BuildLockName)
	return &BuildLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the exclusive lock, retrying for up to wait. It returns
// false when another holder keeps it for longer.
func (l *BuildLock) TryLock(ctx context.Context, wait time.Duration) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	acquired, err := l.flock.TryLockContext(waitCtx, lockRetryDelay)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// TryReadLock takes the shared lock through its own file descriptor. The
// returned release func is nil when a build holds the lock.
func (l *BuildLock) TryReadLock() (release func(), err error) {
	reader := flock.New(l.path)
	acquired, err := reader.TryRLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	if !acquired {
		return nil, nil
	}
	return func() { _ = reader.Unlock() }, nil
}

// Unlock releases the exclusive lock. Safe to call when not held.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *BuildLock) Path() string {
	return l.path
}
