package session

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const lockFileName = "sessions.lock"

// fileLock provides cross-process mutual exclusion over the session table
// using flock(2). Multiple maw processes may share one state root.
type fileLock struct {
	path string
	file *os.File
}

// newFileLock creates a lock scoped to the given state root.
func newFileLock(dir string) *fileLock {
	return &fileLock{
		path: filepath.Join(dir, lockFileName),
	}
}

// Lock acquires an exclusive lock, blocking until available.
func (fl *fileLock) Lock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	fl.file = f

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		fl.file = nil
		return fmt.Errorf("flock: %w", err)
	}
	return nil
}

// Unlock releases the lock and closes the lock file.
func (fl *fileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = fl.file.Close()
		fl.file = nil
		return fmt.Errorf("funlock: %w", err)
	}

	err := fl.file.Close()
	fl.file = nil
	return err
}
