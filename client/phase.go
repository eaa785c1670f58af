package client

import (
	"fmt"
	"time"

	"github.com/m-lab/netpace/metrics"
	"github.com/m-lab/netpace/wire"
)

// PhaseConfig bundles the per-rate-step parameters for one measurement
// phase: target send rate, test duration, sample budget (used to derive
// reply cadence), and the max-burst factor used to size the fall-behind
// threshold.
type PhaseConfig struct {
	MsgPerSecTarget int
	Duration        time.Duration
	Samples         int
	MaxBurst        int
	PhaseLabel      string // used only for metrics, e.g. "1000mps"
}

// PhaseResult reports what a phase actually achieved: the record batch Rx
// collected, the achieved TX/RX rates, and how many times the sender fell
// significantly behind its pacing schedule.
type PhaseResult struct {
	Records       []Record
	MsgPerSecTx   int
	MsgPerSecRx   int
	FallBehinds   int
	StartSeq      uint32
	EndSeq        uint32
}

// pacingState is the pure, clock-free core of the paced sender's
// fall-behind detection, factored out so it can be unit tested without
// real time or a transport. One call models exactly one iteration of the
// send loop.
type pacingState struct {
	ticksPerMsg   uint64
	maxFallBehind uint64
	tsNextSend    uint64
	prevLateness  uint64
}

// step advances pacing state for one message whose actual send tick is
// nowTicks, returning the send_lateness to record on the wire and whether
// this iteration counts as a fall-behind event. prevLateness is the
// send_lateness computed by the PREVIOUS call to step (left over from the
// prior iteration), checked before being overwritten.
//
// The guard only trips when the sender was recently on schedule
// (prevLateness small) and has now suddenly fallen far behind: a single
// stall, as opposed to gradually drifting later message by message (which
// would have already made prevLateness large, failing the guard).
func (p *pacingState) step(nowTicks uint64) (sendLateness uint64, fellBehind bool) {
	if nowTicks > p.tsNextSend+p.maxFallBehind && p.prevLateness < p.maxFallBehind/5 {
		p.tsNextSend = nowTicks
		fellBehind = true
	}
	sendLateness = nowTicks - p.tsNextSend
	p.tsNextSend += p.ticksPerMsg
	p.prevLateness = sendLateness
	return sendLateness, fellBehind
}

// RunPhase drives one measurement phase: switches the receive goroutine to
// Go and warms up (see Start), then sends paced SAVE messages until
// cfg.Duration elapses, bumping reply_seq every replyEvery messages so the
// reflector replies to that one, before stopping and gathering results.
func (tx *Tx) RunPhase(cfg PhaseConfig) (PhaseResult, error) {
	if cfg.MsgPerSecTarget <= 0 {
		return PhaseResult{}, fmt.Errorf("client: msg_per_sec_target must be positive")
	}
	if err := tx.Start(); err != nil {
		return PhaseResult{}, err
	}

	replyEvery := int(int64(cfg.MsgPerSecTarget) * cfg.Duration.Milliseconds() / 1000 / int64(maxInt(cfg.Samples, 1)))
	if replyEvery < 1 {
		replyEvery = 1
	}
	ticksPerMsg := tx.clock.Hz() / uint64(cfg.MsgPerSecTarget)
	maxFallBehind := uint64(cfg.MaxBurst) * ticksPerMsg

	startSeq := tx.nextSeq
	tsStart := tx.clock.Now()
	pacing := pacingState{
		ticksPerMsg:   ticksPerMsg,
		maxFallBehind: maxFallBehind,
		tsNextSend:    tsStart + ticksPerMsg,
	}
	tsEnd := tsStart + tx.clock.Hz()/1000*uint64(cfg.Duration.Milliseconds())

	msgsSinceReply := 0
	fallBehinds := 0
	now := tsStart

	for now < tsEnd {
		seq := tx.nextSeq
		tx.nextSeq++
		msgsSinceReply++
		if msgsSinceReply == replyEvery {
			tx.replySeq++
			msgsSinceReply = 0
		}

		for now < pacing.tsNextSend {
			now = tx.clock.Now()
		}
		sendLateness, fellBehind := pacing.step(now)
		if fellBehind {
			fallBehinds++
			metrics.FallBehindCount.WithLabelValues(cfg.PhaseLabel).Inc()
		}
		metrics.SendJitterHistogram.WithLabelValues(cfg.PhaseLabel).
			Observe(float64(tx.clock.ToNanos(sendLateness)) / 1e9)

		if err := tx.send(wire.Request{
			Timestamp:    now,
			Seq:          seq,
			SendLateness: uint32(sendLateness),
			Flags:        wire.Save,
			ReplySeq:     tx.replySeq,
		}); err != nil {
			return PhaseResult{}, err
		}
	}
	endSeq := tx.nextSeq

	if err := tx.Stop(); err != nil {
		return PhaseResult{}, err
	}

	nTx := uint64(endSeq - startSeq)
	durMs := uint64(cfg.Duration.Milliseconds())
	nRx := nTx - tx.rx.LastGapStats().NMsgsDropped
	res := PhaseResult{
		Records:     tx.rx.Records(),
		MsgPerSecTx: int(nTx * 1000 / durMs),
		MsgPerSecRx: int(nRx * 1000 / durMs),
		FallBehinds: fallBehinds,
		StartSeq:    startSeq,
		EndSeq:      endSeq,
	}
	return res, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
