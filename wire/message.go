// Package wire defines the fixed-layout request and reply records exchanged
// on the netpace data path, and the helpers used to marshal them to and from
// the little-endian wire format.
package wire

import (
	"encoding/binary"
	"errors"
)

// Flags is the set of per-message control bits carried in every request and
// echoed back in every reply.
type Flags uint8

// Message flag bits. Values are powers of two so they can be OR-ed freely.
const (
	// Timestamp asks the server to stamp the reply with its own TSC reading.
	Timestamp Flags = 1 << iota
	// Reset asks the server to reset its sequence tracking and gap stats.
	Reset
	// Save asks the client receive thread to save this reply into its
	// record array.
	Save
	// Sync asks the client receive thread to signal the waiting sender
	// once this reply arrives.
	Sync
	// Stop asks the client receive thread to leave its receive loop and
	// return to the WAIT state.
	Stop
)

// Has reports whether f contains every bit in want.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// GapStats tracks server-side loss and reorder accounting for one client.
type GapStats struct {
	// NMsgsDropped is the running sum of (seq - expected) across every
	// forward-gap event observed for this client.
	NMsgsDropped uint64
	// NGaps counts distinct forward-gap events.
	NGaps uint32
	// NOOO counts received messages whose sequence was strictly less than
	// the expected sequence (signed comparison).
	NOOO uint32
}

// RequestSize is the on-wire size of a Request in bytes.
const RequestSize = 8 + 4 + 4 + 1 + 1

// ReplySize is the on-wire size of a Reply in bytes.
const ReplySize = RequestSize + 2 + 8 + (8 + 4 + 4)

// ErrShort is returned when a buffer is too small to hold a full message.
var ErrShort = errors.New("wire: buffer too short")

// Request is the fixed-layout message the sender transmits on the data path.
type Request struct {
	Timestamp    uint64 // client TSC at (or just before) transmit
	Seq          uint32 // monotonic per-run sequence number, wraps arithmetically
	SendLateness uint32 // cycles by which this send missed its scheduled slot
	Flags        Flags
	ReplySeq     uint8 // bumped whenever the client wants a fresh reply
}

// Encode writes r to buf in wire order. buf must be at least RequestSize
// bytes; Encode uses only the first RequestSize bytes.
func (r *Request) Encode(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], r.Timestamp)
	binary.LittleEndian.PutUint32(buf[8:12], r.Seq)
	binary.LittleEndian.PutUint32(buf[12:16], r.SendLateness)
	buf[16] = byte(r.Flags)
	buf[17] = r.ReplySeq
	return RequestSize
}

// Decode populates r from the wire-order bytes in buf.
func (r *Request) Decode(buf []byte) error {
	if len(buf) < RequestSize {
		return ErrShort
	}
	r.Timestamp = binary.LittleEndian.Uint64(buf[0:8])
	r.Seq = binary.LittleEndian.Uint32(buf[8:12])
	r.SendLateness = binary.LittleEndian.Uint32(buf[12:16])
	r.Flags = Flags(buf[16])
	r.ReplySeq = buf[17]
	return nil
}

// Reply echoes the five Request fields as a prefix (under the field names
// used on the client side: CTimestamp, Seq, SendLateness, Flags, ReplySeq),
// then adds the reply-only tail.
type Reply struct {
	CTimestamp   uint64
	Seq          uint32
	SendLateness uint32
	Flags        Flags
	ReplySeq     uint8

	unused1 uint16 // alignment pad, always zero on the wire

	STimestamp uint64 // server TSC at reply time, set only when Timestamp was requested
	GapStats   GapStats
}

// Encode writes rp to buf in wire order. buf must be at least ReplySize
// bytes.
func (rp *Reply) Encode(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], rp.CTimestamp)
	binary.LittleEndian.PutUint32(buf[8:12], rp.Seq)
	binary.LittleEndian.PutUint32(buf[12:16], rp.SendLateness)
	buf[16] = byte(rp.Flags)
	buf[17] = rp.ReplySeq
	binary.LittleEndian.PutUint16(buf[18:20], 0)
	binary.LittleEndian.PutUint64(buf[20:28], rp.STimestamp)
	binary.LittleEndian.PutUint64(buf[28:36], rp.GapStats.NMsgsDropped)
	binary.LittleEndian.PutUint32(buf[36:40], rp.GapStats.NGaps)
	binary.LittleEndian.PutUint32(buf[40:44], rp.GapStats.NOOO)
	return ReplySize
}

// Decode populates rp from the wire-order bytes in buf.
func (rp *Reply) Decode(buf []byte) error {
	if len(buf) < ReplySize {
		return ErrShort
	}
	rp.CTimestamp = binary.LittleEndian.Uint64(buf[0:8])
	rp.Seq = binary.LittleEndian.Uint32(buf[8:12])
	rp.SendLateness = binary.LittleEndian.Uint32(buf[12:16])
	rp.Flags = Flags(buf[16])
	rp.ReplySeq = buf[17]
	rp.unused1 = binary.LittleEndian.Uint16(buf[18:20])
	rp.STimestamp = binary.LittleEndian.Uint64(buf[20:28])
	rp.GapStats.NMsgsDropped = binary.LittleEndian.Uint64(buf[28:36])
	rp.GapStats.NGaps = binary.LittleEndian.Uint32(buf[36:40])
	rp.GapStats.NOOO = binary.LittleEndian.Uint32(buf[40:44])
	return nil
}

// SeqLess reports whether a is "before" b under the arithmetic signed
// comparison the protocol uses to detect out-of-order and wrapped sequence
// numbers.
func SeqLess(a, b uint32) bool {
	return int32(a-b) < 0
}
