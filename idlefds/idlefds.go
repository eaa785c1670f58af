// Package idlefds creates the "idle descriptor" stress load the --n-pipe /
// --n-unix-d / --n-unix-s / --n-udp / --n-tcpc / --n-tcpl flags ask for:
// a pile of extra file descriptors registered with the readiness
// multiplexer alongside the real data socket, to see whether a large fd
// set changes select/poll/epoll overhead.
package idlefds

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/m-lab/netpace/muxer"
	"github.com/m-lab/netpace/transport"
)

// Config mirrors the cfg_n_* globals: how many of each idle descriptor
// kind to create and register.
type Config struct {
	Pipes         int
	UnixDatagrams int
	UnixStreams   int
	UDP           int
	TCPConnect    int
	TCPConnectTo  string
	TCPListen     int
}

// Set creates Config's idle descriptors and registers each with backend,
// returning every created Transport so the caller can Close them all on
// shutdown. For the local pair kinds, each count is a number of registered
// descriptors and every pair supplies two of them: both ends are registered,
// except the second end of the last pair when the count is odd. Both ends
// of every pair are kept open and returned.
func Set(backend muxer.Backend, cfg Config) ([]transport.Transport, error) {
	var created []transport.Transport
	add := func(t transport.Transport, register bool) error {
		created = append(created, t)
		if !register {
			return nil
		}
		fder, ok := t.(transport.FDer)
		if !ok {
			return fmt.Errorf("idlefds: transport does not support Fd()")
		}
		fd, err := fder.Fd()
		if err != nil {
			return err
		}
		return backend.Add(fd)
	}

	for i := 0; i < cfg.Pipes; i++ {
		a, b, err := transport.NewPipePair()
		if err != nil {
			return created, err
		}
		if err := add(a, true); err != nil {
			return created, err
		}
		i++
		register := i < cfg.Pipes
		if err := add(b, register); err != nil {
			return created, err
		}
	}
	for i := 0; i < cfg.UnixDatagrams; i++ {
		a, b, err := transport.NewUnixDatagramPair()
		if err != nil {
			return created, err
		}
		if err := add(a, true); err != nil {
			return created, err
		}
		i++
		if err := add(b, i < cfg.UnixDatagrams); err != nil {
			return created, err
		}
	}
	for i := 0; i < cfg.UnixStreams; i++ {
		a, b, err := transport.NewUnixStreamPair()
		if err != nil {
			return created, err
		}
		if err := add(a, true); err != nil {
			return created, err
		}
		i++
		if err := add(b, i < cfg.UnixStreams); err != nil {
			return created, err
		}
	}
	for i := 0; i < cfg.UDP; i++ {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{})
		if err != nil {
			return created, err
		}
		if err := add(transport.NewUDP(conn, nil), true); err != nil {
			return created, err
		}
	}
	for i := 0; i < cfg.TCPConnect; i++ {
		conn, err := net.Dial("tcp", cfg.TCPConnectTo)
		if err != nil {
			return created, err
		}
		if err := add(transport.NewTCP(conn), true); err != nil {
			return created, err
		}
	}
	for i := 0; i < cfg.TCPListen; i++ {
		l, err := net.Listen("tcp", ":0")
		if err != nil {
			return created, err
		}
		tcpL, ok := l.(*net.TCPListener)
		if !ok {
			return created, fmt.Errorf("idlefds: unexpected listener type")
		}
		f, err := tcpL.File()
		if err != nil {
			return created, err
		}
		if err := backend.Add(int(f.Fd())); err != nil {
			f.Close()
			return created, err
		}
		_ = unix.SetNonblock(int(f.Fd()), true)
		f.Close() // the dup'd fd registered with backend stays open
	}

	return created, nil
}

// Close closes every Transport that Set created.
func Close(ts []transport.Transport) {
	for _, t := range ts {
		t.Close()
	}
}
