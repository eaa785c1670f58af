package muxer

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollOnce issues a single poll(2) for fd with the given timeout in
// milliseconds (0 returns immediately) and reports whether fd is readable.
// It is used by the spin backend, always with timeoutMs 0.
func pollOnce(fd int, timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

// pollMany issues a single poll(2) over fd plus every idle fd registered
// with the backend via Add, and reports whether fd specifically came back
// readable. The idle fds only add scanning overhead to the syscall, the
// same stress effect idlefds gets from adding fds to epoll's shared epfd.
func pollMany(fd int, idle []int, timeoutMs int) (bool, error) {
	fds := make([]unix.PollFd, 1+len(idle))
	fds[0] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	for i, f := range idle {
		fds[i+1] = unix.PollFd{Fd: int32(f), Events: unix.POLLIN}
	}
	n, err := unix.Poll(fds, timeoutMs)
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

// pollBackend wraps poll(2) over the reply socket plus whatever idle fds
// idlefds has registered via Add, optionally retrying in a tight loop with
// a zero timeout (--spin) instead of blocking for the full duration in one
// syscall.
type pollBackend struct {
	idle []int
	spin bool
}

func newPollBackend(spin bool) Backend {
	return &pollBackend{spin: spin}
}

func (p *pollBackend) Add(fd int) error {
	p.idle = append(p.idle, fd)
	return nil
}

func (p *pollBackend) Wait(fd int, timeoutMs int) error {
	if !p.spin {
		pollTimeout := timeoutMs
		if pollTimeout == 0 {
			pollTimeout = -1 // block indefinitely, per poll(2) convention
		}
		ready, err := pollMany(fd, p.idle, pollTimeout)
		if err != nil {
			return err
		}
		if !ready {
			return ErrTimeout
		}
		return nil
	}
	deadline := time.Time{}
	if timeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}
	for i := 0; i < spinRetryLimit; i++ {
		ready, err := pollMany(fd, p.idle, 0)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrTimeout
		}
	}
	return ErrTimeout
}

func (p *pollBackend) Close() error { return nil }
