// Package driver implements the per-rate sweep that orchestrates repeated
// measurement phases and the early-stop rule: one phase per target rate,
// stopping once a phase can't keep up with its own target.
package driver

import (
	"fmt"
	"time"

	"github.com/m-lab/netpace/client"
	"github.com/m-lab/netpace/metrics"
	"github.com/m-lab/netpace/progress"
	"github.com/m-lab/netpace/rawdump"
	"github.com/m-lab/netpace/stats"
	"github.com/m-lab/netpace/tsc"
	"github.com/m-lab/netpace/wire"
)

// Config bundles the sweep-wide parameters that do not change from one rate
// to the next.
type Config struct {
	MsgLen      int
	Millisec    int
	Samples     int
	MaxBurst    int
	StopPct     int
	Percentile  float64
	ReportRTT   bool // report measured RTT directly instead of subtracting the calibrated return-latency estimate
	RawPrefix   string
	RawCompress bool
}

// RateResult is one completed row of the sweep: the target rate, achieved
// tx/rx rates, latency and send-jitter statistics, and loss accounting
// pulled from the reflector's last reported gap stats.
type RateResult struct {
	Target       int
	MsgPerSecTx  int
	MsgPerSecRx  int
	Latency      stats.Summary
	Jitter       stats.Summary
	FallBehinds  int
	NGaps        uint32
	NMsgsDropped uint64
	NOOO         uint32
	StoppedEarly bool
}

// Sweep runs one measurement phase per entry in rates, in order, stopping
// early if a phase's achieved send rate falls below cfg.StopPct percent of
// its target. prog reports phase lifecycle events; pass
// progress.NullServer() if nothing is listening.
func Sweep(tx *client.Tx, rx *client.Rx, rates []int, cfg Config, prog progress.Server) ([]RateResult, error) {
	var results []RateResult
	clock := tx.Clock()

	// Calibrate the one-way return-latency estimate once, before the rate
	// sweep, rather than per phase. --rtt reports measured RTT directly,
	// so no calibration run (and no per-sample correction) is needed then.
	var retLatencyNanos int64
	if !cfg.ReportRTT {
		rttSamples, err := tx.MeasureRTT()
		if err != nil {
			return nil, fmt.Errorf("driver: rtt calibration failed: %w", err)
		}
		retLatencyNanos = stats.Compute(rttSamples, cfg.Percentile).HalveForOneWay().Mean
	}

	for _, rate := range rates {
		label := fmt.Sprintf("%dmps", rate)
		prog.PhaseStarted(rate)

		phase, err := tx.RunPhase(client.PhaseConfig{
			MsgPerSecTarget: rate,
			Duration:        time.Duration(cfg.Millisec) * time.Millisecond,
			Samples:         cfg.Samples,
			MaxBurst:        cfg.MaxBurst,
			PhaseLabel:      label,
		})
		if err != nil {
			return results, fmt.Errorf("driver: phase at %d msg/s failed: %w", rate, err)
		}
		gaps := rx.LastGapStats()

		result := summarize(rate, phase, gaps, cfg, clock, retLatencyNanos)
		for _, ns := range oneWayLatencyNanos(phase.Records, clock, cfg, retLatencyNanos) {
			metrics.LatencyHistogram.WithLabelValues(label).Observe(float64(ns) / 1e9)
		}

		stopReason := "duration"
		if rate > 0 && result.MsgPerSecTx*100/rate < cfg.StopPct {
			result.StoppedEarly = true
			stopReason = "stop-threshold"
		}
		prog.PhaseFinished(rate, result.MsgPerSecTx, result.MsgPerSecRx, stopReason)
		results = append(results, result)

		if cfg.RawPrefix != "" {
			if err := dumpRaw(clock, cfg, rate, phase, retLatencyNanos); err != nil {
				return results, err
			}
		}

		if result.StoppedEarly {
			break
		}
	}
	return results, nil
}

func latencyNanos(recs []client.Record, clock tsc.Clock) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = clock.ToNanos(r.TsRecv - r.TsSend)
	}
	return out
}

// oneWayLatencyNanos applies the --rtt correction: with --rtt, the raw
// round-trip samples are reported unchanged; otherwise each sample has
// the scalar calibrated return-latency estimate subtracted, which may
// leave it negative; negative values are reported as-is rather than
// clamped to zero.
func oneWayLatencyNanos(recs []client.Record, clock tsc.Clock, cfg Config, retLatencyNanos int64) []int64 {
	out := latencyNanos(recs, clock)
	if cfg.ReportRTT {
		return out
	}
	for i, v := range out {
		out[i] = v - retLatencyNanos
	}
	return out
}

func summarize(rate int, phase client.PhaseResult, gaps wire.GapStats, cfg Config, clock tsc.Clock, retLatencyNanos int64) RateResult {
	latencies := oneWayLatencyNanos(phase.Records, clock, cfg, retLatencyNanos)
	jitters := make([]int64, len(phase.Records))
	for i, r := range phase.Records {
		jitters[i] = clock.ToNanos(uint64(r.SendLateness))
	}

	latSummary := stats.Compute(latencies, cfg.Percentile)
	jitSummary := stats.Compute(jitters, cfg.Percentile)

	return RateResult{
		Target:       rate,
		MsgPerSecTx:  phase.MsgPerSecTx,
		MsgPerSecRx:  phase.MsgPerSecRx,
		Latency:      latSummary,
		Jitter:       jitSummary,
		FallBehinds:  phase.FallBehinds,
		NGaps:        gaps.NGaps,
		NMsgsDropped: gaps.NMsgsDropped,
		NOOO:         gaps.NOOO,
	}
}

// dumpRaw writes the phase's per-sample raw file via rawdump's
// three-column format.
func dumpRaw(clock tsc.Clock, cfg Config, rate int, phase client.PhaseResult, retLatencyNanos int64) error {
	w, err := rawdump.New(cfg.RawPrefix, cfg.MsgLen, rate, cfg.RawCompress)
	if err != nil {
		return fmt.Errorf("driver: could not open raw dump for %d msg/s: %w", rate, err)
	}
	defer w.Close()

	latencies := oneWayLatencyNanos(phase.Records, clock, cfg, retLatencyNanos)
	var tsStart uint64
	if len(phase.Records) > 0 {
		first := phase.Records[0]
		tsStart = first.TsSend - uint64(first.SendLateness)
	}
	return w.WriteRecords(clock, tsStart, phase.Records, latencies)
}
