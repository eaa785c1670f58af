// Package client implements the measuring side of the protocol: a receive
// goroutine that tags and stashes incoming replies, and a paced sender that
// drives warmup, RTT calibration, and the timed measurement phase itself.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/m-lab/netpace/transport"
	"github.com/m-lab/netpace/wire"
)

// RxCmd is the command the sender gives the receive goroutine: Wait (idle,
// drop anything that arrives), Go (actively record SAVE replies and
// publish SYNC replies), or Exit (shut down).
type RxCmd int

const (
	RxWait RxCmd = iota
	RxGo
	RxExit
)

// Record is one saved reply: the client-side send timestamp echoed back by
// the reflector, the receive timestamp stamped by Rx, the sequence number,
// and how late (in ticks) the sender was when it actually sent this
// message. Mirrors struct client_rx_rec.
type Record struct {
	TsSend       uint64
	TsRecv       uint64
	Seq          uint32
	SendLateness uint32
}

// Rx is the receive side of the client: a single goroutine reads replies
// off the transport, stashing every SAVE reply into Recs and publishing
// every SYNC reply's sequence number so the sender's blocking waits can
// observe it. State is guarded by a mutex; a channel-based "broadcast" wakes
// waiters, since Go's sync.Cond has no deadline-aware wait, so a
// close-and-replace channel stands in for a condition variable's
// signal/broadcast.
type Rx struct {
	t       transport.Transport
	waitAll bool

	mu       sync.Mutex
	cmd      RxCmd
	syncSeq  uint32
	recs     []Record
	lastGaps wire.GapStats
	wake     chan struct{}

	done chan struct{}
	err  error
}

// NewRx starts the receive goroutine against t. recsCapacity is the
// capacity of the saved-record array; a SAVE reply beyond it fails the
// receive loop. With waitAll set, each read asks for exactly
// wire.ReplySize bytes, so a stream transport's RecvOne loop assembles one
// whole reply per read.
func NewRx(t transport.Transport, waitAll bool, recsCapacity int) *Rx {
	rx := &Rx{
		t:       t,
		waitAll: waitAll,
		recs:    make([]Record, 0, recsCapacity),
		wake:    make(chan struct{}),
		done:    make(chan struct{}),
		cmd:     RxWait,
	}
	go rx.loop()
	return rx
}

// SetCmd changes the receive goroutine's command (Wait/Go/Exit). The loop
// simply polls cmd between reads (see loop); a transport with a pending
// blocking read is only interrupted by Close, not by SetCmd, so a command
// change only takes effect once the in-flight read returns.
func (r *Rx) SetCmd(cmd RxCmd) {
	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()
}

// broadcast wakes every goroutine blocked in WaitSync by closing the
// current wake channel and replacing it.
func (r *Rx) broadcast() {
	close(r.wake)
	r.wake = make(chan struct{})
}

// WaitSync blocks until a SYNC reply carrying seq has been observed, or
// ctx is done. A context.Context deadline set by the caller drives the
// timeout rather than a raw absolute-deadline wait.
func (r *Rx) WaitSync(ctx context.Context, seq uint32) error {
	for {
		r.mu.Lock()
		if r.syncSeq == seq {
			r.mu.Unlock()
			return nil
		}
		wake := r.wake
		r.mu.Unlock()

		select {
		case <-wake:
			// Loop around and recheck syncSeq; spurious wakeups (a
			// different seq published) are normal and tolerated.
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			if r.err != nil {
				return r.err
			}
			return io.EOF
		}
	}
}

// Records returns the accumulated SAVE records, cleared on every
// transition into RxGo (a new phase starts its own batch).
func (r *Rx) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.recs))
	copy(out, r.recs)
	return out
}

// ResetRecords clears the saved record batch, called once per phase
// just before the sender transitions the receive command to Go.
func (r *Rx) ResetRecords() {
	r.mu.Lock()
	r.recs = r.recs[:0]
	r.mu.Unlock()
}

// LastGapStats returns the gap/drop/out-of-order counters from the most
// recently received reply, used by the driver to compute achieved RX rate
// and to report loss for the just-finished phase.
func (r *Rx) LastGapStats() wire.GapStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastGaps
}

func (r *Rx) loop() {
	buf := make([]byte, 64*1024)
	if r.waitAll {
		buf = buf[:wire.ReplySize]
	}
	defer close(r.done)

	for {
		r.mu.Lock()
		cmd := r.cmd
		r.mu.Unlock()
		if cmd == RxExit {
			return
		}

		n, err := r.t.RecvOne(buf, r.waitAll)
		now := nowTicks()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			r.err = err
			return
		}
		if n < wire.ReplySize {
			r.err = fmt.Errorf("client: short reply read (%d bytes)", n)
			return
		}

		r.mu.Lock()
		if r.cmd == RxWait {
			// Idle: keep reading so a SetCmd transition is observed
			// promptly, but discard whatever arrived.
			r.mu.Unlock()
			continue
		}

		var reply wire.Reply
		if decErr := reply.Decode(buf[:n]); decErr != nil {
			r.mu.Unlock()
			continue
		}
		if reply.Flags.Has(wire.Save) {
			if len(r.recs) >= cap(r.recs) {
				r.err = fmt.Errorf("client: recs_n exceeded recs_max (%d)", cap(r.recs))
				r.mu.Unlock()
				return
			}
			r.recs = append(r.recs, Record{
				TsSend:       reply.CTimestamp,
				TsRecv:       now,
				Seq:          reply.Seq,
				SendLateness: reply.SendLateness,
			})
		}
		r.lastGaps = reply.GapStats
		if reply.Flags.Has(wire.Sync) {
			r.syncSeq = reply.Seq
			r.broadcast()
		}
		stop := reply.Flags.Has(wire.Stop)
		r.mu.Unlock()

		if stop {
			r.mu.Lock()
			r.cmd = RxWait
			r.mu.Unlock()
		}
	}
}

// nowTicks is a package-level clock hook so tests can deterministically
// control receive timestamps; production code always uses the real clock.
var nowTicks = func() uint64 { return uint64(time.Now().UnixNano()) }

// ErrLostSync is returned (wrapped) by the sender's sync pings in Tx.Start,
// Tx.Stop and Tx.MeasureRTT when the reflector never answered within the
// requested timeout.
var ErrLostSync = errors.New("client: synchronisation reply lost")
