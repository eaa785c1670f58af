package wire_test

import (
	"bytes"
	"testing"

	"github.com/m-lab/netpace/wire"
)

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.PutString(&buf, "localhost:5001"); err != nil {
		t.Fatal(err)
	}
	got, err := wire.GetString(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != "localhost:5001" {
		t.Fatalf("got %q", got)
	}
}

func TestStringEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.PutString(&buf, ""); err != nil {
		t.Fatal(err)
	}
	got, err := wire.GetString(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}

func TestIntRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.PutInt32(&buf, -42); err != nil {
		t.Fatal(err)
	}
	got, err := wire.GetInt32(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != -42 {
		t.Fatalf("got %d, want -42", got)
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	want := wire.Options{
		FDType:      1,
		Connect:     1,
		Spin:        0,
		MuxerName:   "epoll",
		McastGroup:  "",
		McastIntf:   "eth0",
		McastLoop:   1,
		NPipe:       2,
		NUnixStream: 0,
		NUDP:        4,
		NTCPConnect: 0,
		NTCPListen:  0,
		ServerCoreI: -1,
		NoDelay:     1,
	}
	var buf bytes.Buffer
	if err := want.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := wire.ReadOptions(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestCheckVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.ServerSendVersion(&buf, wire.BuildInfo{Version: "v1", SourceChecksum: "abc"}); err != nil {
		t.Fatal(err)
	}
	err := wire.ClientCheckVersion(&buf, wire.BuildInfo{Version: "v2", SourceChecksum: "abc"})
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
	if _, ok := err.(*wire.ErrVersionMismatch); !ok {
		t.Fatalf("expected *ErrVersionMismatch, got %T", err)
	}
}

func TestCheckVersionMatch(t *testing.T) {
	var buf bytes.Buffer
	info := wire.BuildInfo{Version: "v1", SourceChecksum: "abc"}
	if err := wire.ServerSendVersion(&buf, info); err != nil {
		t.Fatal(err)
	}
	if err := wire.ClientCheckVersion(&buf, info); err != nil {
		t.Fatalf("unexpected mismatch: %v", err)
	}
}
