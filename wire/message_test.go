package wire_test

import (
	"testing"

	"github.com/m-lab/netpace/wire"
)

func TestRequestRoundTrip(t *testing.T) {
	want := wire.Request{
		Timestamp:    0x0102030405060708,
		Seq:          123456,
		SendLateness: 77,
		Flags:        wire.Save | wire.Sync,
		ReplySeq:     9,
	}
	buf := make([]byte, wire.RequestSize)
	n := want.Encode(buf)
	if n != wire.RequestSize {
		t.Fatalf("Encode returned %d, want %d", n, wire.RequestSize)
	}

	// Wire format is little-endian: the low byte of Timestamp must be
	// the first byte on the wire.
	if buf[0] != 0x08 {
		t.Fatalf("expected little-endian low byte first, got %#x", buf[0])
	}

	var got wire.Request
	if err := got.Decode(buf); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestRequestDecodeShort(t *testing.T) {
	var r wire.Request
	if err := r.Decode(make([]byte, wire.RequestSize-1)); err != wire.ErrShort {
		t.Fatalf("expected ErrShort, got %v", err)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	want := wire.Reply{
		CTimestamp:   111,
		Seq:          222,
		SendLateness: 3,
		Flags:        wire.Timestamp,
		ReplySeq:     5,
		STimestamp:   999,
		GapStats: wire.GapStats{
			NMsgsDropped: 42,
			NGaps:        2,
			NOOO:         1,
		},
	}
	buf := make([]byte, wire.ReplySize)
	want.Encode(buf)

	var got wire.Reply
	if err := got.Decode(buf); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestSeqLess(t *testing.T) {
	cases := []struct {
		a, b uint32
		want bool
	}{
		{1, 2, true},
		{2, 1, false},
		{0, 0, false},
		// Wraparound: under the signed difference, a sequence just before
		// the wrap is "less than" one just after it, even though it is the
		// larger value as an unsigned integer.
		{0, 0xFFFFFFFF, false},
		{0xFFFFFFFF, 0, true},
	}
	for _, c := range cases {
		if got := wire.SeqLess(c.a, c.b); got != c.want {
			t.Errorf("SeqLess(%d, %d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
