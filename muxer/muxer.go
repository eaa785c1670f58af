// Package muxer implements the readiness-multiplexer backends the netpace
// client and server can use while waiting for the next reply or request to
// arrive. Backends are select(2), poll(2), epoll(2) in three registration
// variants, a spin backend that repeats a zero-timeout poll(2), and a no-op
// "none" backend for plain blocking receive. The receive paths in client.Rx
// and reflector.Loop do not call Backend.Wait: they call Transport.RecvOne
// directly, and cmd/netpace uses the server's backend only to register the
// idle descriptors from package idlefds.
package muxer

import (
	"fmt"
	"time"
)

// Backend is the narrow surface the core depends on.
type Backend interface {
	// Add registers fd for readiness notification. Must be called
	// before the first Wait.
	Add(fd int) error

	// Wait blocks until fd is readable or timeoutMs elapses, returning
	// ErrTimeout in the latter case. A timeoutMs of 0 disables the
	// timeout (blocks indefinitely). The "none" backend returns nil at
	// once and never times out.
	Wait(fd int, timeoutMs int) error

	// Close releases any backend-owned descriptors (e.g. the epoll fd).
	Close() error
}

// ErrTimeout is returned by Wait when no readiness event arrived in time.
var ErrTimeout = fmt.Errorf("muxer: timed out waiting for readiness")

// New constructs the named backend. spin requests the tight-retry variant
// where the backend supports one (poll, epoll); select has no spin variant
// and requesting one is rejected.
func New(name string, spin bool) (Backend, error) {
	switch name {
	case "", "none":
		if spin {
			return newSpinBackend(), nil
		}
		return newBlockingBackend(), nil
	case "select":
		if spin {
			return nil, fmt.Errorf("muxer: spin is not supported with the select backend")
		}
		return newSelectBackend(), nil
	case "poll":
		return newPollBackend(spin), nil
	case "epoll":
		return newEpollBackend(epollModeNone, spin)
	case "epoll_mod":
		return newEpollBackend(epollModeModify, spin)
	case "epoll_adddel":
		return newEpollBackend(epollModeAddDel, spin)
	default:
		return nil, fmt.Errorf("muxer: unknown backend %q", name)
	}
}

// blockingBackend never multiplexes; Wait always reports readiness
// immediately, leaving the actual blocking to Transport.RecvOne.
type blockingBackend struct{}

func newBlockingBackend() Backend { return blockingBackend{} }

func (blockingBackend) Add(fd int) error                { return nil }
func (blockingBackend) Wait(fd int, timeoutMs int) error { return nil }
func (blockingBackend) Close() error                    { return nil }

// spinBackend busy-waits by repeatedly attempting a zero-timeout readiness
// check, bounded by spinRetryLimit iterations so a spin wait still
// eventually reports ErrTimeout instead of looping forever.
const spinRetryLimit = 10_000_000

type spinBackend struct {
	fds map[int]bool
}

func newSpinBackend() Backend {
	return &spinBackend{fds: make(map[int]bool)}
}

func (s *spinBackend) Add(fd int) error {
	s.fds[fd] = true
	return nil
}

func (s *spinBackend) Wait(fd int, timeoutMs int) error {
	deadline := time.Time{}
	if timeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}
	for i := 0; i < spinRetryLimit; i++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrTimeout
		}
		ready, err := pollOnce(fd, 0)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
	}
	return ErrTimeout
}

func (s *spinBackend) Close() error { return nil }
