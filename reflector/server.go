package reflector

import (
	"errors"
	"io"
	"log"
	"net"

	"github.com/m-lab/netpace/metrics"
	"github.com/m-lab/netpace/transport"
	"github.com/m-lab/netpace/tsc"
	"github.com/m-lab/netpace/wire"
)

// Loop drives one Server against a data transport until the transport
// reports a clean close. For a UDP transport it receives with the sender's
// address attached, so replies go back to whichever address the client is
// actually sending from; other transports are point-to-point, so there is
// only ever one possible peer.
//
// The main loop is simple: receive, update gap accounting, send a reply
// only when reply_seq has advanced.
func Loop(t transport.Transport, reqSize int, clock tsc.Clock) error {
	srv := New()
	buf := make([]byte, reqSize)
	udp, isUDP := t.(*transport.UDPTransport)

	for {
		var n int
		var err error
		var addr net.Addr
		if isUDP {
			var udpAddr *net.UDPAddr
			n, udpAddr, err = udp.RecvFrom(buf)
			addr = udpAddr
		} else {
			n, err = t.RecvOne(buf, false)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if n < wire.RequestSize {
			continue
		}
		var req wire.Request
		if err := req.Decode(buf[:n]); err != nil {
			log.Printf("reflector: malformed request: %v", err)
			continue
		}

		reply, ok, err := srv.Step(addr, req, clock.Now())
		if err != nil {
			if errors.Is(err, ErrAnotherClient) {
				metrics.ReflectorRejectedClients.Inc()
				continue
			}
			return err
		}
		if !ok {
			continue
		}
		metrics.ReflectorRepliesSent.Inc()

		out := make([]byte, wire.ReplySize)
		reply.Encode(out)
		if isUDP {
			if _, err := udp.SendTo(out, addr.(*net.UDPAddr)); err != nil {
				return err
			}
			continue
		}
		if _, err := t.Send(out); err != nil {
			return err
		}
	}
}
