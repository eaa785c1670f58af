package rawdump

import (
	"os"

	"github.com/gocarina/gocsv"
)

// PhaseSummary is one row of the CSV summary companion netpace writes
// alongside its tab-separated stdout report, for consumers (spreadsheets,
// notebooks) that prefer a structured format over scraping stdout.
type PhaseSummary struct {
	MsgPerSecTarget int     `csv:"msg_per_sec_target"`
	MsgPerSecTx     int     `csv:"msg_per_sec_tx"`
	MsgPerSecRx     int     `csv:"msg_per_sec_rx"`
	LatencyMeanNs   int64   `csv:"latency_mean_ns"`
	LatencyMinNs    int64   `csv:"latency_min_ns"`
	LatencyMedianNs int64   `csv:"latency_median_ns"`
	LatencyMaxNs    int64   `csv:"latency_max_ns"`
	LatencyPctNs    int64   `csv:"latency_percentile_ns"`
	LatencyStdDevNs int64   `csv:"latency_stddev_ns"`
	Samples         int     `csv:"samples"`
	FallBehinds     int     `csv:"fall_behinds"`
	Gaps            int     `csv:"gaps"`
	MsgsDropped     uint64  `csv:"msgs_dropped"`
	OutOfOrder      int     `csv:"out_of_order"`
}

// WriteCSVSummary writes one row per PhaseSummary to path, overwriting any
// existing file.
func WriteCSVSummary(path string, rows []PhaseSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}
