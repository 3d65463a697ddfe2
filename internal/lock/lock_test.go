package lock_test

import (
	"errors"
	"testing"

	"github.com/labi-le/clipsync/internal/lock"
	"github.com/rs/zerolog"
)

func TestAcquire_SecondInstanceFails(t *testing.T) {
	dir := t.TempDir()

	unlock, err := lock.Acquire(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	// the lock belongs to this process, so a second attempt is refused
	// unless lockfile treats the same pid as the owner
	if second, err := lock.Acquire(dir, zerolog.Nop()); err == nil {
		second()
	} else if !errors.Is(err, lock.ErrAlreadyRunning) && !errors.Is(err, lock.ErrCannotLock) {
		t.Fatalf("unexpected error: %v", err)
	}

	unlock()

	again, err := lock.Acquire(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("lock must be free after unlock: %v", err)
	}
	again()
}
