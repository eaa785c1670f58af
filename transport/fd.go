package transport

import (
	"fmt"
	"syscall"
)

// FDer is implemented by transports whose underlying descriptor can be
// handed to a muxer backend for readiness multiplexing. Pipe transports and
// net.Conn-backed transports all qualify; callers that need muxer support
// type-assert for it rather than it being part of the core Transport
// interface, since --muxer=none never needs a raw fd at all.
type FDer interface {
	Fd() (int, error)
}

func (s *streamTransport) Fd() (int, error) { return connFd(s.conn) }
func (u *UDPTransport) Fd() (int, error)     { return connFd(u.conn) }
func (u *unixDatagramTransport) Fd() (int, error) { return connFd(u.conn) }
func (p *pipeTransport) Fd() (int, error)   { return int(p.read.Fd()), nil }

// connFd recovers the integer file descriptor backing a net.Conn without
// duplicating it, via the syscall.Conn/RawConn control hook.
func connFd(c syscall.Conn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	err = raw.Control(func(rawFd uintptr) {
		fd = int(rawFd)
	})
	if err != nil {
		return -1, err
	}
	if fd < 0 {
		return -1, fmt.Errorf("transport: could not recover descriptor")
	}
	return fd, nil
}
