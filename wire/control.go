package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PutString writes s to w as a 32-bit little-endian length prefix followed
// by the raw bytes, with no terminator.
func PutString(w io.Writer, s string) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// GetString reads a string framed the way PutString writes it.
func GetString(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
	}
	return string(buf), nil
}

// PutInt32 writes a 32-bit little-endian signed int to w.
func PutInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

// GetInt32 reads a 32-bit little-endian signed int from r.
func GetInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// Options are the test parameters negotiated over the control channel before
// the data path opens, in the order they are sent on the wire.
type Options struct {
	FDType        int32
	Connect       int32
	Spin          int32
	MuxerName     string
	McastGroup    string
	McastIntf     string
	McastLoop     int32
	NPipe         int32
	NUnixStream   int32
	NUnixDatagram int32
	NUDP          int32
	NTCPConnect   int32
	NTCPListen    int32
	ServerCoreI   int32
	NoDelay       int32
}

// WriteTo writes o to w in the order client_send_opts uses.
func (o *Options) WriteTo(w io.Writer) error {
	ints := []int32{o.FDType, o.Connect, o.Spin}
	for _, v := range ints {
		if err := PutInt32(w, v); err != nil {
			return err
		}
	}
	if err := PutString(w, o.MuxerName); err != nil {
		return err
	}
	if err := PutString(w, o.McastGroup); err != nil {
		return err
	}
	if err := PutString(w, o.McastIntf); err != nil {
		return err
	}
	rest := []int32{
		o.McastLoop, o.NPipe, o.NUnixStream, o.NUnixDatagram,
		o.NUDP, o.NTCPConnect, o.NTCPListen, o.ServerCoreI, o.NoDelay,
	}
	for _, v := range rest {
		if err := PutInt32(w, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadOptions reads an Options value framed the way WriteTo writes it.
func ReadOptions(r io.Reader) (Options, error) {
	var o Options
	var err error
	readInt := func(dst *int32) {
		if err != nil {
			return
		}
		*dst, err = GetInt32(r)
	}
	readStr := func(dst *string) {
		if err != nil {
			return
		}
		*dst, err = GetString(r)
	}

	readInt(&o.FDType)
	readInt(&o.Connect)
	readInt(&o.Spin)
	readStr(&o.MuxerName)
	readStr(&o.McastGroup)
	readStr(&o.McastIntf)
	readInt(&o.McastLoop)
	readInt(&o.NPipe)
	readInt(&o.NUnixStream)
	readInt(&o.NUnixDatagram)
	readInt(&o.NUDP)
	readInt(&o.NTCPConnect)
	readInt(&o.NTCPListen)
	readInt(&o.ServerCoreI)
	readInt(&o.NoDelay)
	return o, err
}

// BuildInfo identifies the running binary for the version handshake.
type BuildInfo struct {
	Version      string
	SourceChecksum string
}

// ErrVersionMismatch is returned by ClientCheckVersion when the client and server
// disagree about build version or source checksum.
type ErrVersionMismatch struct {
	ClientVersion, ServerVersion   string
	ClientChecksum, ServerChecksum string
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("wire: version mismatch: client=%s/%s server=%s/%s",
		e.ClientVersion, e.ClientChecksum, e.ServerVersion, e.ServerChecksum)
}

// ServerSendVersion performs handshake step 1 from the server side: send the
// build version and source checksum strings.
func ServerSendVersion(w io.Writer, info BuildInfo) error {
	if err := PutString(w, info.Version); err != nil {
		return err
	}
	return PutString(w, info.SourceChecksum)
}

// ClientCheckVersion performs handshake step 1 from the client side: read
// the server's version/checksum strings and compare to ours, returning
// ErrVersionMismatch on any difference.
func ClientCheckVersion(r io.Reader, mine BuildInfo) error {
	serverVersion, err := GetString(r)
	if err != nil {
		return err
	}
	serverChecksum, err := GetString(r)
	if err != nil {
		return err
	}
	if serverVersion != mine.Version || serverChecksum != mine.SourceChecksum {
		return &ErrVersionMismatch{
			ClientVersion:  mine.Version,
			ServerVersion:  serverVersion,
			ClientChecksum: mine.SourceChecksum,
			ServerChecksum: serverChecksum,
		}
	}
	return nil
}
