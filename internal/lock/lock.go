package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nightlyone/lockfile"
	"github.com/rs/zerolog"
)

const file = "clipsync.lck"

var (
	ErrCannotLock     = errors.New("cannot get locked process")
	ErrAlreadyRunning = errors.New("clipsync is already running")
)

// Acquire takes the single instance lock in dir (os.TempDir when empty)
// and returns the function releasing it.
func Acquire(dir string, logger zerolog.Logger) (func(), error) {
	if dir == "" {
		dir = os.TempDir()
	}

	lock, err := lockfile.New(filepath.Join(dir, file))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotLock, err)
	}

	if lockErr := lock.TryLock(); lockErr != nil {
		owner, err := lock.GetOwner()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCannotLock, lockErr)
		}
		return nil, fmt.Errorf("%w: pid %d", ErrAlreadyRunning, owner.Pid)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn().Err(err).Msg("cannot unlock process")
		}
	}, nil
}
