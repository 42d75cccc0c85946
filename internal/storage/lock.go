package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrBuildInProgress is returned by TryLock when another process holds the
// build lock for the same output directory.
var ErrBuildInProgress = errors.New("another build is writing to this output directory")

// BuildLock is a cross-process lock on an output directory. The lock file
// lives at <dir>/.build.lock.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func NewBuildLock(dir string) *BuildLock {
	lockPath := filepath.Join(dir, ".build.lock")
	return &BuildLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking, failing with
// ErrBuildInProgress when it is held elsewhere.
func (l *BuildLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}
	if !acquired {
		return ErrBuildInProgress
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked BuildLock is a no-op.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release build lock: %w", err)
	}
	return nil
}

func (l *BuildLock) Path() string { return l.path }
