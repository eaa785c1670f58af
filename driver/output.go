package driver

import (
	"fmt"
	"io"
)

// HeaderInfo carries the run-time context printed as the `#`-prefixed
// comment block before the first data row: negotiated options, the
// server's reported environment, and the column header line.
type HeaderInfo struct {
	ServerEnv     string // the server's reported environment string, step 3 of the handshake
	Options       string // a short summary of negotiated options
	Muxer         string
	ServerMuxer   string
	Affinity      string
	Multicast     string
	Percentile    float64
	ReturnLatency string // "measured" or "half-rtt"
}

// PrintHeader writes the `# key=value` banner lines a run begins with,
// followed by the tab-separated column header for the rows that follow.
func PrintHeader(w io.Writer, info HeaderInfo) {
	fmt.Fprintf(w, "# server environment: %s\n", info.ServerEnv)
	fmt.Fprintf(w, "# options: %s\n", info.Options)
	fmt.Fprintf(w, "# muxer=%s\n", info.Muxer)
	fmt.Fprintf(w, "# serv-muxer=%s\n", info.ServerMuxer)
	fmt.Fprintf(w, "# affinity=%s\n", info.Affinity)
	fmt.Fprintf(w, "# multicast=%s\n", info.Multicast)
	fmt.Fprintf(w, "# percentile=%g\n", info.Percentile)
	fmt.Fprintf(w, "# return_latency=%s\n", info.ReturnLatency)
	if info.ReturnLatency != "measured" {
		fmt.Fprintln(w, "# NOTE: stddev is computed on round-trip samples and is not halved")
	}
	fmt.Fprintln(w, "#target_mps\ttx_mps\trx_mps\tlat_mean\tlat_min\tlat_median\tlat_max\tlat_pct\tlat_stddev\tlat_samples\tsj_mean\tsj_min\tsj_max\tn_fall_behinds\tn_gaps\tn_drops\tn_ooo")
}

// WriteResultLine prints one tab-separated data row in the column order
// PrintHeader's header line declares.
func WriteResultLine(w io.Writer, r RateResult) {
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		r.Target, r.MsgPerSecTx, r.MsgPerSecRx,
		r.Latency.Mean, r.Latency.Min, r.Latency.Median, r.Latency.Max, r.Latency.Percentile, r.Latency.StdDev, r.Latency.N,
		r.Jitter.Mean, r.Jitter.Min, r.Jitter.Max,
		r.FallBehinds, r.NGaps, r.NMsgsDropped, r.NOOO,
	)
}
