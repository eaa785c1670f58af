package client_test

import (
	"testing"
	"time"

	"github.com/m-lab/netpace/client"
	"github.com/m-lab/netpace/transport"
	"github.com/m-lab/netpace/tsc"
	"github.com/m-lab/netpace/wire"
)

// echoReflector is a minimal stand-in for the reflector package, used here
// only to exercise client.Tx/client.Rx's sync/warmup/stop handshakes
// without pulling in the reflector package, keeping this a black-box
// transport test.
func echoReflector(t *testing.T, srv transport.Transport) {
	t.Helper()
	buf := make([]byte, wire.RequestSize)
	for {
		n, err := srv.RecvOne(buf, false)
		if err != nil {
			return
		}
		if n < wire.RequestSize {
			continue
		}
		var req wire.Request
		if err := req.Decode(buf[:n]); err != nil {
			continue
		}
		reply := wire.Reply{
			CTimestamp: req.Timestamp,
			Seq:        req.Seq,
			Flags:      req.Flags,
			ReplySeq:   req.ReplySeq,
		}
		out := make([]byte, wire.ReplySize)
		reply.Encode(out)
		if _, err := srv.Send(out); err != nil {
			return
		}
	}
}

func TestStartWarmupAndStop(t *testing.T) {
	a, b, err := transport.NewUnixDatagramPair()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	defer b.Close()

	go echoReflector(t, b)

	rx := client.NewRx(a, false, 16)
	tx := client.NewTx(a, rx, tsc.NanoClock{}, wire.RequestSize)

	if err := tx.Start(); err != nil {
		t.Fatalf("Start (warmup): %v", err)
	}
	if err := tx.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRunPhaseShortDuration(t *testing.T) {
	a, b, err := transport.NewUnixDatagramPair()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	defer b.Close()

	go echoReflector(t, b)

	rx := client.NewRx(a, false, 100000)
	tx := client.NewTx(a, rx, tsc.NanoClock{}, wire.RequestSize)

	res, err := tx.RunPhase(client.PhaseConfig{
		MsgPerSecTarget: 200,
		Duration:        50 * time.Millisecond,
		Samples:         10,
		MaxBurst:        20,
		PhaseLabel:      "test",
	})
	if err != nil {
		t.Fatalf("RunPhase: %v", err)
	}
	if res.EndSeq <= res.StartSeq {
		t.Fatalf("expected some messages sent: start=%d end=%d", res.StartSeq, res.EndSeq)
	}
	if res.MsgPerSecTx <= 0 {
		t.Fatalf("MsgPerSecTx = %d, want > 0", res.MsgPerSecTx)
	}
}
