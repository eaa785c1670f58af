// Package transport gives the netpace core a single "send one message" /
// "receive one message" surface over five concrete transports, so that
// neither the wire protocol nor the reflector/client logic has to know
// whether it is talking over TCP, UDP, a pipe, or a Unix-domain socket.
package transport

import "fmt"

// FDType identifies which concrete transport a Transport was built from. It
// is also the value negotiated over the control channel during the
// handshake (wire.Options.FDType), so the numeric values below are part of
// the wire protocol and must not be renumbered.
type FDType int32

// Transport kinds, matching the fd_type values negotiated in the control
// handshake.
const (
	FDTCP FDType = iota
	FDUDP
	FDPipe
	FDUnixStream
	FDUnixDatagram
)

// IsStream reports whether a transport of this kind requires "receive all"
// semantics to reassemble a full record (stream transports have no
// message boundaries on the wire).
func (t FDType) IsStream() bool {
	switch t {
	case FDTCP, FDUnixStream:
		return true
	default:
		return false
	}
}

// IsLocal reports whether a transport of this kind is host-local (pipes and
// Unix-domain sockets), as opposed to routable over the network.
func (t FDType) IsLocal() bool {
	switch t {
	case FDPipe, FDUnixStream, FDUnixDatagram:
		return true
	default:
		return false
	}
}

func (t FDType) String() string {
	switch t {
	case FDTCP:
		return "tcp"
	case FDUDP:
		return "udp"
	case FDPipe:
		return "pipe"
	case FDUnixStream:
		return "unix_stream"
	case FDUnixDatagram:
		return "unix_datagram"
	default:
		return fmt.Sprintf("FDType(%d)", int32(t))
	}
}

// ParseFDType maps a command-line transport name to its FDType.
func ParseFDType(name string) (FDType, error) {
	switch name {
	case "tcp":
		return FDTCP, nil
	case "udp":
		return FDUDP, nil
	case "pipe":
		return FDPipe, nil
	case "unix_stream":
		return FDUnixStream, nil
	case "unix_datagram":
		return FDUnixDatagram, nil
	default:
		return 0, fmt.Errorf("transport: unknown transport %q", name)
	}
}

// Transport is the uniform surface the core uses to move request and reply
// bytes. Implementations for all five fd_types live in this package; the
// core never type-switches on the concrete type.
type Transport interface {
	// Send transmits exactly one message. A short send is a fatal
	// transport error at the caller; Send itself just reports what the
	// underlying call did.
	Send(buf []byte) (int, error)

	// RecvOne receives up to len(buf) bytes of a single message. For
	// datagram transports one underlying receive call is one message.
	// For stream transports, waitAll drives a loop that keeps reading
	// until exactly len(buf) bytes have arrived or the connection
	// errors or reaches EOF.
	RecvOne(buf []byte, waitAll bool) (int, error)

	// Close releases the underlying descriptor(s).
	Close() error
}
