// Package lockfile guards a spool directory against concurrent use by
// more than one process, using an flock-based advisory lock the way
// the teacher's file store locks its anchor-map ref file.
package lockfile

import (
	"path/filepath"

	"github.com/bobg/flock"
	"github.com/pkg/errors"
)

// ErrSpoolLocked is returned by Acquire when another process already
// holds the lock.
var ErrSpoolLocked = errors.New("lockfile: spool directory is locked by another process")

const lockName = ".lock"

// Lock represents an acquired lock on one spool directory. Release it
// with Unlock when done.
type Lock struct {
	path    string
	flocker flock.Locker
}

// Acquire takes an exclusive lock on spoolDir's lockfile. It does not
// block: if another process holds the lock, it returns ErrSpoolLocked
// immediately.
func Acquire(spoolDir string) (*Lock, error) {
	path := filepath.Join(spoolDir, lockName)
	var flocker flock.Locker
	if err := flocker.Lock(path); err != nil {
		return nil, errors.Wrap(ErrSpoolLocked, err.Error())
	}
	return &Lock{path: path, flocker: flocker}, nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	return errors.Wrap(l.flocker.Unlock(l.path), "unlocking spool directory")
}
