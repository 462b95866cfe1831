package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside every output directory while a run writes to it.
const LockFileName = ".voxsrt.lock"

// DirLock is an exclusive advisory lock on an output directory.
type DirLock struct {
	path string
	lock *flock.Flock
}

// LockDir creates dir if needed and takes its lock without waiting.
func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, LockFileName)
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &DirLock{path: path, lock: l}, nil
}

func (d *DirLock) Path() string { return d.path }

func (d *DirLock) Unlock() error {
	if d == nil || d.lock == nil {
		return nil
	}
	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
