package manifest

import (
	"errors"
	"os"
)

// errLockHeld reports that another process owns the run lock.
var errLockHeld = errors.New("lock held")

// runLock is the exclusive advisory file lock serializing whole reconcile
// runs against one manifest.
type runLock struct {
	f *os.File
}

// acquireRunLock takes the lock without blocking; a lock owned elsewhere
// surfaces as errLockHeld.
func acquireRunLock(path string) (*runLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &runLock{f: f}, nil
}

func (l *runLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := flockRelease(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return closeErr
}
