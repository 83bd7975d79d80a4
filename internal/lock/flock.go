// Package lock guards a work directory against concurrent publisher runs.
package lock

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("work directory is locked by another process")

// Flock is an advisory, non-blocking exclusive lock on an open file.
type Flock struct {
	*os.File
}

// Lock acquires the lock or fails immediately with ErrLocked.
func (f Flock) Lock() error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return errors.Wrap(ErrLocked, f.Name())
	}
	if err != nil {
		return errors.Wrapf(err, "flock %s", f.Name())
	}
	return nil
}

// Unlock releases the lock.
func (f Flock) Unlock() error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// Acquire opens (creating if needed) dir/.lock and locks it. The returned
// function unlocks and closes the file.
func Acquire(dir string) (func() error, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}

	f, err := os.OpenFile(filepath.Join(dir, ".lock"), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open lock file")
	}

	fl := Flock{f}
	if err := fl.Lock(); err != nil {
		f.Close()
		return nil, err
	}

	return func() error {
		if err := fl.Unlock(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}
