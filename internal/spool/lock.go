package spool

import (
	"os"

	"golang.org/x/sys/unix"
)

// lock takes an exclusive advisory lock on f. It blocks until the lock is
// free and is released when f is closed.
func lock(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			return err
		}
	}
}
