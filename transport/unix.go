package transport

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// unixDatagramTransport implements Transport over a connected
// unixgram socket pair (SOCK_DGRAM, as socketpair(2) creates). Unlike UDP
// there is no reflector-side fan-out here: the protocol only ever supports
// one client, so the datagram socket is always connected point-to-point.
type unixDatagramTransport struct {
	conn *net.UnixConn
}

// NewUnixDatagram wraps an already-connected Unix-domain datagram conn.
func NewUnixDatagram(conn *net.UnixConn) Transport {
	return &unixDatagramTransport{conn: conn}
}

func (u *unixDatagramTransport) Send(buf []byte) (int, error) {
	return u.conn.Write(buf)
}

func (u *unixDatagramTransport) RecvOne(buf []byte, waitAll bool) (int, error) {
	// Datagram sockets deliver one message per Read regardless of
	// waitAll; a short buffer truncates rather than blocking for more.
	return u.conn.Read(buf)
}

func (u *unixDatagramTransport) Close() error {
	return u.conn.Close()
}

// NewUnixDatagramPair returns two connected Unix-domain datagram
// Transports, built from a real socketpair(2).
func NewUnixDatagramPair() (a, b Transport, err error) {
	ca, cb, err := socketpairConns(unix.SOCK_DGRAM)
	if err != nil {
		return nil, nil, err
	}
	return NewUnixDatagram(ca), NewUnixDatagram(cb), nil
}

// NewUnixStreamPair returns two connected Unix-domain stream Transports,
// built from a real socketpair(2).
func NewUnixStreamPair() (a, b Transport, err error) {
	ca, cb, err := socketpairConns(unix.SOCK_STREAM)
	if err != nil {
		return nil, nil, err
	}
	return NewUnixStream(ca), NewUnixStream(cb), nil
}

// socketpairConns creates a connected pair of AF_UNIX sockets of the given
// type and wraps each end as a *net.UnixConn, so the rest of the package
// can treat them like any other net.Conn.
func socketpairConns(sockType int) (*net.UnixConn, *net.UnixConn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, sockType, 0)
	if err != nil {
		return nil, nil, os.NewSyscallError("socketpair", err)
	}
	ca, err := fdToUnixConn(fds[0], "netpace-sp-a")
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	cb, err := fdToUnixConn(fds[1], "netpace-sp-b")
	if err != nil {
		ca.Close()
		return nil, nil, err
	}
	return ca, cb, nil
}

func fdToUnixConn(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, os.ErrInvalid
	}
	return uc, nil
}
