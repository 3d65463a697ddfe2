//go:build unix

// Package pipe moves selection data through pipes whose other end belongs
// to another process.
package pipe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const readChunkSize = 64 * 1024

var (
	ErrCreate  = errors.New("pipe: failed to create pipe")
	ErrTimeout = errors.New("pipe: no data in time")
	ErrTooBig  = errors.New("pipe: data exceeds limit")
)

// New returns the read end to keep and the write end to hand over.
func New() (r, w *os.File, err error) {
	r, w, err = os.Pipe()
	if err != nil {
		return nil, nil, errors.Join(ErrCreate, err)
	}
	return r, w, nil
}

// ReadAll reads r until the writer closes its end. It fails when no byte
// arrives for idle, or when more than limit bytes arrive; zero limit means
// no limit.
func ReadAll(r *os.File, idle time.Duration, limit int) ([]byte, error) {
	fd := int(r.Fd())

	var dest bytes.Buffer
	buf := make([]byte, readChunkSize)

	for {
		ready, err := wait(fd, idle)
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, fmt.Errorf("%w: idle for %s after %d bytes", ErrTimeout, idle, dest.Len())
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if needWait(err) {
				continue
			}
			return nil, fmt.Errorf("pipe read: %w", err)
		}
		if n == 0 {
			return dest.Bytes(), nil
		}

		dest.Write(buf[:n])
		if limit > 0 && dest.Len() > limit {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooBig, limit)
		}
	}
}

// WriteAll writes data to w and closes it. A reader that went away is not
// an error.
func WriteAll(w *os.File, data []byte, timeout time.Duration) error {
	defer w.Close()

	if err := w.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		timer := time.AfterFunc(timeout, func() { _ = w.Close() })
		defer timer.Stop()
	}

	var total int
	for total < len(data) {
		n, err := w.Write(data[total:])
		total += n
		if err != nil {
			if readerGone(err) {
				return nil
			}
			return fmt.Errorf("pipe write after %d bytes: %w", total, err)
		}
	}
	return nil
}

func needWait(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}

func readerGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EDESTADDRREQ) ||
		errors.Is(err, syscall.EBADF)
}

// wait reports whether fd is readable or hung up before timeout.
func wait(fd int, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{
		Fd:     int32(fd),
		Events: unix.POLLIN | unix.POLLERR | unix.POLLHUP | unix.POLLNVAL,
	}}

	for {
		n, err := unix.Poll(fds, int(timeout.Milliseconds()))
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return false, fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return false, nil
		}

		re := fds[0].Revents
		if re&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("poll: revents=%#x", re)
		}
		// POLLHUP with no data left reads as EOF
		return true, nil
	}
}
