package transport_test

import (
	"testing"

	"github.com/m-lab/netpace/transport"
)

func TestParseFDType(t *testing.T) {
	cases := map[string]transport.FDType{
		"tcp":           transport.FDTCP,
		"udp":           transport.FDUDP,
		"pipe":          transport.FDPipe,
		"unix_stream":   transport.FDUnixStream,
		"unix_datagram": transport.FDUnixDatagram,
	}
	for name, want := range cases {
		got, err := transport.ParseFDType(name)
		if err != nil {
			t.Fatalf("ParseFDType(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("ParseFDType(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := transport.ParseFDType("bogus"); err == nil {
		t.Error("expected error for unknown transport name")
	}
}

func TestIsStreamAndLocal(t *testing.T) {
	if !transport.FDTCP.IsStream() {
		t.Error("tcp should be a stream transport")
	}
	if transport.FDUDP.IsStream() {
		t.Error("udp should not be a stream transport")
	}
	if transport.FDTCP.IsLocal() {
		t.Error("tcp should not be local")
	}
	if !transport.FDPipe.IsLocal() {
		t.Error("pipe should be local")
	}
}

func TestPipePairRoundTrip(t *testing.T) {
	a, b, err := transport.NewPipePair()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	defer b.Close()

	msg := []byte("hello-pipe")
	n, err := a.Send(msg)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(msg) {
		t.Fatalf("sent %d bytes, want %d", n, len(msg))
	}

	buf := make([]byte, len(msg))
	n, err = b.RecvOne(buf, true)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != string(msg) {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
}

func TestUnixDatagramPairRoundTrip(t *testing.T) {
	a, b, err := transport.NewUnixDatagramPair()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	defer b.Close()

	msg := []byte("hello-unixgram")
	if _, err := a.Send(msg); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	n, err := b.RecvOne(buf, false)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != string(msg) {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
}

func TestUnixStreamPairWaitAll(t *testing.T) {
	a, b, err := transport.NewUnixStreamPair()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	defer b.Close()

	msg := []byte("hello-unix-stream")
	go func() {
		// Split the write to ensure waitAll really assembles a full
		// record across more than one underlying read.
		a.Send(msg[:3])
		a.Send(msg[3:])
	}()

	buf := make([]byte, len(msg))
	n, err := b.RecvOne(buf, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(msg) || string(buf) != string(msg) {
		t.Fatalf("got %q (%d bytes), want %q", buf[:n], n, msg)
	}
}
