package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockPath returns the lock file guarding the store at dir.
func LockPath(dir string) string {
	return filepath.Clean(dir) + ".lock"
}

// Lock obtains the cross-process writer lock for the store at dir, polling
// until timeout. The returned func releases it. An empty dir (in-memory store)
// needs no lock.
func Lock(dir string, timeout time.Duration) (func(), error) {
	if dir == "" {
		return func() {}, nil
	}
	lockPath := LockPath(dir)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return func() {}, fmt.Errorf("cannot create lock directory: %w", err)
	}
	l := flock.New(lockPath)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire store lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("%w (lock: %s)", ErrLocked, lockPath)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
