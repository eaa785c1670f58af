package transport

import (
	"net"

	"golang.org/x/net/ipv4"
)

// UDPTransport implements Transport over a UDP socket. A request sender
// uses it "connected" (dst set at construction, every Send targets the
// same peer); a reflector uses it unconnected and calls SendTo per reply,
// since it must address whichever client most recently registered.
type UDPTransport struct {
	conn *net.UDPConn
	dst  *net.UDPAddr
}

// NewUDP wraps conn. If dst is non-nil, Send always writes to dst (the
// --connect case, or a reflector replying to its one registered client).
// If dst is nil, callers must use SendTo.
func NewUDP(conn *net.UDPConn, dst *net.UDPAddr) *UDPTransport {
	return &UDPTransport{conn: conn, dst: dst}
}

func (u *UDPTransport) Send(buf []byte) (int, error) {
	if u.dst != nil {
		return u.conn.WriteToUDP(buf, u.dst)
	}
	return u.conn.Write(buf)
}

// SendTo sends one datagram to an explicit address, used by the reflector
// to answer whichever client most recently registered its reply endpoint.
func (u *UDPTransport) SendTo(buf []byte, dst *net.UDPAddr) (int, error) {
	return u.conn.WriteToUDP(buf, dst)
}

func (u *UDPTransport) RecvOne(buf []byte, waitAll bool) (int, error) {
	// UDP is already message-oriented: one ReadFromUDP call returns
	// exactly one datagram. waitAll has no effect here.
	n, _, err := u.conn.ReadFromUDP(buf)
	return n, err
}

// RecvFrom receives one datagram and also returns the sender's address.
// reflector.Loop uses that address both to identify the client and as the
// destination of its reply.
func (u *UDPTransport) RecvFrom(buf []byte) (int, *net.UDPAddr, error) {
	return u.conn.ReadFromUDP(buf)
}

func (u *UDPTransport) Close() error {
	return u.conn.Close()
}

// JoinMulticast configures conn to receive the multicast group addressed
// by group on the named interface (empty selects the default interface),
// and optionally enables loopback of locally transmitted multicast
// datagrams (--mcastloop).
func JoinMulticast(conn *net.UDPConn, group net.IP, ifaceName string, loop bool) error {
	var iface *net.Interface
	if ifaceName != "" {
		found, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return err
		}
		iface = found
	}
	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
		return err
	}
	return p.SetMulticastLoopback(loop)
}
