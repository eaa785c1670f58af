package driver_test

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/m-lab/netpace/client"
	"github.com/m-lab/netpace/driver"
	"github.com/m-lab/netpace/progress"
	"github.com/m-lab/netpace/reflector"
	"github.com/m-lab/netpace/transport"
	"github.com/m-lab/netpace/tsc"
	"github.com/m-lab/netpace/wire"
)

func newLoopbackPair(t *testing.T) (clientT *transport.UDPTransport, rx *client.Rx) {
	t.Helper()
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("server ListenUDP: %v", err)
	}
	clientConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("client ListenUDP: %v", err)
	}

	serverT := transport.NewUDP(serverConn, nil)
	go func() {
		reflector.Loop(serverT, wire.RequestSize, tsc.NanoClock{})
	}()

	clientTransport := transport.NewUDP(clientConn, serverConn.LocalAddr().(*net.UDPAddr))
	rx = client.NewRx(clientTransport, false, 10000)
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})
	return clientTransport, rx
}

func TestSweepLoopbackUDPSingleRate(t *testing.T) {
	clientTransport, rx := newLoopbackPair(t)
	tx := client.NewTx(clientTransport, rx, tsc.NanoClock{}, wire.RequestSize)

	cfg := driver.Config{
		MsgLen:     wire.RequestSize,
		Millisec:   500,
		Samples:    100,
		MaxBurst:   100,
		StopPct:    10,
		Percentile: 99,
		ReportRTT:  true,
	}
	results, err := driver.Sweep(tx, rx, []int{10000}, cfg, progress.NullServer())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.StoppedEarly {
		t.Error("did not expect an early stop on loopback UDP")
	}
	if r.NGaps != 0 || r.NOOO != 0 {
		t.Errorf("expected no loss on loopback, got gaps=%d ooo=%d", r.NGaps, r.NOOO)
	}
	low, high := 9800, 10200
	if r.MsgPerSecTx < low || r.MsgPerSecTx > high {
		t.Errorf("MsgPerSecTx = %d, want within [%d,%d]", r.MsgPerSecTx, low, high)
	}
	if r.Latency.N < 50 {
		t.Errorf("Latency.N = %d, want at least 50 saved samples", r.Latency.N)
	}
}

func TestSweepEarlyStop(t *testing.T) {
	clientTransport, rx := newLoopbackPair(t)
	tx := client.NewTx(clientTransport, rx, tsc.NanoClock{}, wire.RequestSize)

	cfg := driver.Config{
		MsgLen:     wire.RequestSize,
		Millisec:   100,
		Samples:    10,
		MaxBurst:   100,
		StopPct:    99, // any measurable shortfall trips this
		Percentile: 99,
		ReportRTT:  true,
	}
	// An absurdly high target rate this slow a pure-Go loopback sender
	// cannot keep up with guarantees tx_mps / target falls well under
	// the stop threshold.
	rates := []int{50_000_000, 1000}
	results, err := driver.Sweep(tx, rx, rates, cfg, progress.NullServer())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want exactly 1 (sweep should stop after the first rate)", len(results))
	}
	if !results[0].StoppedEarly {
		t.Error("expected the first (unreachable) rate to trigger an early stop")
	}
}

func TestWriteResultLineFormat(t *testing.T) {
	var buf bytes.Buffer
	driver.WriteResultLine(&buf, driver.RateResult{
		Target: 1000, MsgPerSecTx: 999, MsgPerSecRx: 998,
	})
	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	if len(fields) != 17 {
		t.Fatalf("got %d tab-separated fields, want 17", len(fields))
	}
}

func TestPrintHeaderIncludesKeyFields(t *testing.T) {
	var buf bytes.Buffer
	driver.PrintHeader(&buf, driver.HeaderInfo{
		Muxer: "epoll", Percentile: 99, ReturnLatency: "half-rtt",
	})
	out := buf.String()
	for _, want := range []string{"# muxer=epoll", "# percentile=99", "#target_mps"} {
		if !strings.Contains(out, want) {
			t.Errorf("header output missing %q:\n%s", want, out)
		}
	}
}
