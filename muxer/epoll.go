package muxer

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollMode selects how the epoll backend rearms its interest each wait
// cycle: plain (registered once, never touched again), epoll_mod (re-armed
// with EPOLL_CTL_MOD before every wait) and epoll_adddel (removed with
// EPOLL_CTL_DEL after every wait and re-added with EPOLL_CTL_ADD before the
// next). All three are observationally identical for a single
// level-triggered fd; they exist to let the driver measure whether the
// extra epoll_ctl calls show up in the latency distribution.
type epollMode int

const (
	epollModeNone epollMode = iota
	epollModeModify
	epollModeAddDel
)

type epollBackend struct {
	epfd  int
	fd    int
	mode  epollMode
	spin  bool
	armed bool
}

func newEpollBackend(mode epollMode, spin bool) (Backend, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollBackend{epfd: epfd, fd: -1, mode: mode, spin: spin}, nil
}

func (e *epollBackend) Add(fd int) error {
	e.fd = fd
	if e.mode == epollModeAddDel {
		// Registered lazily, right before each Wait.
		return nil
	}
	event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return err
	}
	e.armed = true
	return nil
}

func (e *epollBackend) Wait(fd int, timeoutMs int) error {
	switch e.mode {
	case epollModeModify:
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		op := unix.EPOLL_CTL_ADD
		if e.armed {
			op = unix.EPOLL_CTL_MOD
		}
		if err := unix.EpollCtl(e.epfd, op, fd, &event); err != nil {
			return err
		}
		e.armed = true
	case epollModeAddDel:
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return err
		}
		defer unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}

	events := make([]unix.EpollEvent, 1)
	if e.spin {
		deadline := time.Time{}
		if timeoutMs > 0 {
			deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
		}
		for i := 0; i < spinRetryLimit; i++ {
			n, err := unix.EpollWait(e.epfd, events, 0)
			if err != nil && err != unix.EINTR {
				return err
			}
			if n > 0 {
				return nil
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return ErrTimeout
			}
		}
		return ErrTimeout
	}

	waitMs := timeoutMs
	if waitMs == 0 {
		waitMs = -1
	}
	n, err := unix.EpollWait(e.epfd, events, waitMs)
	if err != nil {
		if err == unix.EINTR {
			return ErrTimeout
		}
		return err
	}
	if n <= 0 {
		return ErrTimeout
	}
	return nil
}

func (e *epollBackend) Close() error {
	return unix.Close(e.epfd)
}
