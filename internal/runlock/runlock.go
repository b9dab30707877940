// Package runlock provides a non-blocking cross-process lock file so
// overlapping scheduler triggers of the one-shot binary exit cleanly
// instead of collecting the same window twice.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrHeld is returned when another process already holds the lock.
var ErrHeld = errors.New("lock already held by another process")

// Lock is an acquired lock file. The kernel releases the flock if the
// process dies, so a crashed invocation never blocks the next one.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock at path without blocking. Returns ErrHeld if
// another process holds it.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrHeld, path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return l.file.Close()
}
