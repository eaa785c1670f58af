// Package rawdump writes the --raw per-sample output files: one row per
// recorded message giving its intended send time, actual send time, and
// measured latency. Optionally pipes the output through an external zstd
// process instead of writing plain text.
package rawdump

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/m-lab/netpace/client"
	"github.com/m-lab/netpace/tsc"
)

// Writer accumulates one phase's raw samples into a "<prefix>-<msglen>-
// <rate>.dat" file (or ".dat.zst" if compression is enabled).
type Writer struct {
	f    io.WriteCloser
	buf  *bufio.Writer
	path string
}

// New opens the raw dump file for one phase. prefix is the --raw flag
// value; msgLen and msgPerSec name the file as "<prefix>-<msglen>-<rate>.dat".
func New(prefix string, msgLen, msgPerSec int, compress bool) (*Writer, error) {
	path := fmt.Sprintf("%s-%d-%d.dat", prefix, msgLen, msgPerSec)
	var f io.WriteCloser
	var err error
	if compress {
		path += ".zst"
		f, err = newZstdWriter(path)
	} else {
		f, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("rawdump: could not open output file %q: %w", path, err)
	}
	w := &Writer{f: f, buf: bufio.NewWriter(f), path: path}
	fmt.Fprintf(w.buf, "#send-target(ns)\tsend-actual(ns)\tlatency(ns)\n")
	return w, nil
}

// WriteRecords writes one row per record. tsStart is the phase's reference
// tick that every timestamp is offset against. rawdump never adjusts
// latency for one-way estimation itself; it only formats whatever latency
// the caller already computed.
func (w *Writer) WriteRecords(clock tsc.Clock, tsStart uint64, recs []client.Record, latencyNanos []int64) error {
	if len(recs) != len(latencyNanos) {
		return fmt.Errorf("rawdump: records and latency slices must be the same length")
	}
	for i, r := range recs {
		targetSend := r.TsSend - uint64(r.SendLateness)
		fmt.Fprintf(w.buf, "%.9f\t%.9f\t%.9f\n",
			tsToSeconds(clock, tsStart, targetSend),
			tsToSeconds(clock, tsStart, r.TsSend),
			float64(latencyNanos[i])*1e-9)
	}
	return nil
}

func tsToSeconds(clock tsc.Clock, tsStart, ts uint64) float64 {
	return 1e-9 * float64(clock.ToNanos(ts-tsStart))
}

// Close flushes and closes the underlying file (or zstd pipe).
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Path returns the file path this Writer is writing to, for logging.
func (w *Writer) Path() string { return w.path }
