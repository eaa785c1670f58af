package transport

import (
	"io"
	"net"
)

// streamTransport implements Transport over any net.Conn that delivers a
// reliable byte stream (TCP, Unix-domain stream sockets). Message
// boundaries don't exist on the wire, so RecvOne with waitAll set loops
// until it has read exactly len(buf) bytes.
type streamTransport struct {
	conn net.Conn
}

// NewTCP wraps an already-connected TCP conn (dialed by the caller, which
// knows whether it is acting as client or server).
func NewTCP(conn net.Conn) Transport {
	return &streamTransport{conn: conn}
}

// NewUnixStream wraps an already-connected Unix-domain stream conn.
func NewUnixStream(conn net.Conn) Transport {
	return &streamTransport{conn: conn}
}

func (s *streamTransport) Send(buf []byte) (int, error) {
	return s.conn.Write(buf)
}

func (s *streamTransport) RecvOne(buf []byte, waitAll bool) (int, error) {
	if !waitAll {
		return s.conn.Read(buf)
	}
	n, err := io.ReadFull(s.conn, buf)
	if err == io.ErrUnexpectedEOF {
		// A partial record followed by EOF is still a short read as
		// far as the core is concerned.
		return n, io.EOF
	}
	return n, err
}

func (s *streamTransport) Close() error {
	return s.conn.Close()
}
