package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m-lab/netpace/transport"
	"github.com/m-lab/netpace/tsc"
	"github.com/m-lab/netpace/wire"
)

// Tuning constants for the warmup and RTT calibration rounds. These stay
// named constants rather than becoming new flags; see DESIGN.md.
const (
	WarmupRounds    = 100
	RTTSamples      = 1000
	stopSyncRetries = 10
)

// Tx is the paced sender half of the client. It owns sequence numbering and
// the reply_seq cadence; Rx (constructed separately) owns receiving and
// publishing SYNC/SAVE state. A Tx always drives exactly one Rx.
type Tx struct {
	t      transport.Transport
	rx     *Rx
	clock  tsc.Clock
	nextSeq uint32
	replySeq uint8
	msgLen  int
}

// NewTx builds a sender bound to t and rx. msgLen is the on-wire request
// size to send (normally wire.RequestSize, but RTT calibration forces it up
// to wire.ReplySize so forward and reflected messages are symmetric).
func NewTx(t transport.Transport, rx *Rx, clock tsc.Clock, msgLen int) *Tx {
	return &Tx{t: t, rx: rx, clock: clock, msgLen: msgLen}
}

// Clock returns the tsc.Clock this sender was built with, so callers (the
// driver package, in particular) can convert recorded tick deltas to
// nanoseconds without duplicating the clock reference.
func (tx *Tx) Clock() tsc.Clock { return tx.clock }

func (tx *Tx) send(req wire.Request) error {
	buf := make([]byte, tx.msgLen)
	req.Encode(buf)
	n, err := tx.t.Send(buf)
	if err != nil {
		return err
	}
	if n != tx.msgLen {
		return fmt.Errorf("client: short send (%d of %d bytes)", n, tx.msgLen)
	}
	return nil
}

// sync sends one message carrying flags|Sync and blocks (up to timeout) for
// its reflected reply to arrive, mirroring client_sync.
func (tx *Tx) sync(flags wire.Flags, timeout time.Duration) error {
	seq := tx.nextSeq
	tx.nextSeq++
	tx.replySeq++

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := tx.send(wire.Request{
		Timestamp:    tx.clock.Now(),
		Seq:          seq,
		Flags:        flags | wire.Sync,
		ReplySeq:     tx.replySeq,
	}); err != nil {
		return err
	}
	if err := tx.rx.WaitSync(ctx, seq); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: seq %d after %s", ErrLostSync, seq, timeout)
		}
		return err
	}
	return nil
}

// Start transitions the receive goroutine into Go, resets sequencing, and
// runs the warmup loop: WarmupRounds RESET|SYNC pings, failing the run if
// any single one times out.
func (tx *Tx) Start() error {
	tx.rx.ResetRecords()
	tx.rx.SetCmd(RxGo)
	tx.nextSeq = 0
	for i := 0; i < WarmupRounds; i++ {
		if err := tx.sync(wire.Reset, time.Second); err != nil {
			return fmt.Errorf("client: warmup sync %d/%d failed: %w", i+1, WarmupRounds, err)
		}
	}
	return nil
}

// Stop repeatedly pings with the Stop flag, up to stopSyncRetries attempts
// at 100ms each, until one is acknowledged. The receive goroutine stays in
// Go for this: it only transitions itself to Wait once it has actually
// decoded the Stop-flagged reply (see Rx.loop), so Stop must not flip the
// command first. Doing so would make the loop discard the very reply it
// is waiting to see.
func (tx *Tx) Stop() error {
	var lastErr error
	for i := 0; i < stopSyncRetries; i++ {
		if err := tx.sync(wire.Stop, 100*time.Millisecond); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("client: stop sync lost after %d attempts: %w", stopSyncRetries, lastErr)
}

// MeasureRTT runs RTTSamples ping-pongs with Save|Reset|Sync set on every
// message (so every reply is both recorded and used to synchronise), then
// returns the raw round-trip samples in nanoseconds. Forward messages are
// sent at wire.ReplySize (not the sweep's negotiated msgLen) for
// send/receive symmetry with the reflected reply, the size bump handshake
// step 7 negotiates with the server before this call.
func (tx *Tx) MeasureRTT() ([]int64, error) {
	prevLen := tx.msgLen
	if tx.msgLen < wire.ReplySize {
		tx.msgLen = wire.ReplySize
	}
	defer func() { tx.msgLen = prevLen }()

	if err := tx.Start(); err != nil {
		return nil, err
	}
	flags := wire.Save | wire.Reset | wire.Sync
	for i := 0; i < RTTSamples; i++ {
		if err := tx.sync(flags, time.Second); err != nil {
			return nil, fmt.Errorf("client: rtt sample %d/%d failed: %w", i+1, RTTSamples, err)
		}
	}
	recs := tx.rx.Records()
	samples := make([]int64, 0, len(recs))
	for _, r := range recs {
		samples = append(samples, tx.clock.ToNanos(r.TsRecv-r.TsSend))
	}
	if err := tx.Stop(); err != nil {
		return nil, err
	}
	return samples, nil
}
