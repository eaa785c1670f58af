// Package reflector implements the server half of the paced measurement
// protocol: it tracks one client's expected sequence number, gap/
// out-of-order/dropped counters, and reply cadence, and echoes a reply
// whenever the client's reply_seq advances. Server holds the reflection
// state; Loop (server.go) drives one over a transport.Transport. The
// package does no control-channel I/O of its own: that lives in
// cmd/netpace, which runs the handshake and then calls Loop.
package reflector

import (
	"fmt"
	"net"
	"sync"

	"github.com/m-lab/netpace/wire"
)

// ClientState is one client's reflection state: the next sequence number
// expected, the gap/drop/out-of-order counters accumulated since the last
// RESET, and the last reply_seq value seen (replies are only sent when
// this changes, matching the protocol's "ack coalescing" design).
type ClientState struct {
	Addr        net.Addr
	SeqExpected uint32
	ReplySeq    uint8
	GapStats    wire.GapStats
	initialized bool
}

// ErrAnotherClient is returned by Server.Step when a second, distinct
// client address tries to register while one is already active. The
// protocol supports exactly one reflected client at a time.
var ErrAnotherClient = fmt.Errorf("reflector: a different client is already registered")

// Server holds the single active client's reflection state. It is safe for
// concurrent use: Step is typically called from one receive loop, but
// Forget and Snapshot may be called from another goroutine.
type Server struct {
	mu     sync.Mutex
	client ClientState
}

// New returns an empty Server with no client registered yet.
func New() *Server { return &Server{} }

// Step applies one received Request from addr, returning the Reply to send
// (if any) and ok=true, or ok=false if no reply is due this round (the
// client's reply_seq has not advanced). now is the server's current clock
// reading in tsc ticks, stamped into the reply's STimestamp only when the
// request carries the Timestamp flag.
func (s *Server) Step(addr net.Addr, req wire.Request, now uint64) (wire.Reply, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.client.initialized {
		s.client = ClientState{Addr: addr, SeqExpected: req.Seq, initialized: true}
	} else if !sameAddr(s.client.Addr, addr) {
		return wire.Reply{}, false, ErrAnotherClient
	}

	c := &s.client
	if req.Flags.Has(wire.Reset) {
		c.SeqExpected = req.Seq + 1
		c.GapStats = wire.GapStats{}
	} else {
		switch {
		case req.Seq == c.SeqExpected:
			c.SeqExpected++
		case wire.SeqLess(req.Seq, c.SeqExpected):
			c.GapStats.NOOO++
		default:
			c.GapStats.NMsgsDropped += uint64(req.Seq - c.SeqExpected)
			c.SeqExpected = req.Seq + 1
			c.GapStats.NGaps++
		}
	}

	if req.ReplySeq == c.ReplySeq {
		return wire.Reply{}, false, nil
	}
	c.ReplySeq = req.ReplySeq

	reply := wire.Reply{
		CTimestamp:   req.Timestamp,
		Seq:          req.Seq,
		SendLateness: req.SendLateness,
		Flags:        req.Flags,
		ReplySeq:     req.ReplySeq,
		GapStats:     c.GapStats,
	}
	if req.Flags.Has(wire.Timestamp) {
		reply.STimestamp = now
	}
	return reply, true, nil
}

// Snapshot returns a copy of the current client state, including its
// gap_stats. (The client-side driver reads gap stats from replies via
// client.Rx.LastGapStats, not from here.)
func (s *Server) Snapshot() ClientState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Forget clears the registered client, allowing a new one to register, for
// independent runs against the same Server. Loop never calls it, so a Loop
// serves only the first client it hears from.
func (s *Server) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = ClientState{}
}

func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
