package muxer

import (
	"time"

	"golang.org/x/sys/unix"
)

// selectBackend wraps select(2) over the reply socket plus whatever idle
// fds idlefds has registered via Add: all of them go into the same FdSet so
// the idle descriptors add scanning overhead to the syscall, the same
// stress effect idlefds gets from adding fds to epoll's shared epfd.
type selectBackend struct {
	idle map[int]bool
}

func newSelectBackend() Backend { return &selectBackend{idle: make(map[int]bool)} }

func (s *selectBackend) Add(fd int) error {
	s.idle[fd] = true
	return nil
}

func (s *selectBackend) Wait(fd int, timeoutMs int) error {
	var set unix.FdSet
	maxFd := fd
	fdSetOne(&set, fd)
	for f := range s.idle {
		fdSetOne(&set, f)
		if f > maxFd {
			maxFd = f
		}
	}

	var tv *unix.Timeval
	if timeoutMs > 0 {
		t := unix.NsecToTimeval((time.Duration(timeoutMs) * time.Millisecond).Nanoseconds())
		tv = &t
	}
	n, err := unix.Select(maxFd+1, &set, nil, nil, tv)
	if err == unix.EINTR {
		return ErrTimeout
	}
	if err != nil {
		return err
	}
	if n <= 0 || !fdIsSet(&set, fd) {
		return ErrTimeout
	}
	return nil
}

func (s *selectBackend) Close() error { return nil }

func fdSetOne(set *unix.FdSet, fd int) {
	idx := fd / 64
	bit := uint(fd % 64)
	set.Bits[idx] |= 1 << bit
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	idx := fd / 64
	bit := uint(fd % 64)
	return set.Bits[idx]&(1<<bit) != 0
}
