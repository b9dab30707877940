package runlock

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Reacquirable after release.
	lock2, err := Acquire(path)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	lock2.Release()
}

func TestAcquire_HeldWithinProcess(t *testing.T) {
	// flock is per open file description, so a second open in the same
	// process contends the same way a second process would.
	path := filepath.Join(t.TempDir(), "collector.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if _, err := Acquire(path); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
}
