// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to various parts of the pipeline.
//
// When defining new operations or metrics, these are helpful values to track:
//  - things coming into or go out of the system: requests, files, tests, api calls.
//  - the success or error status of any of the above.
//  - the distribution of processing latency.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReflectorRepliesSent counts replies the reflector has sent back to
	// its registered client.
	ReflectorRepliesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netpace_reflector_replies_sent_total",
			Help: "Number of reply messages sent by the reflector.",
		},
	)

	// ReflectorRejectedClients counts requests rejected because they came
	// from a different address than the currently registered client.
	ReflectorRejectedClients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netpace_reflector_rejected_clients_total",
			Help: "Number of requests rejected due to a second distinct client address.",
		},
	)

	// GapCount is a per-phase counter of sequence gaps (dropped message
	// runs). Nothing in this module increments it: the reflector reports
	// its gap counts to the client in each reply's GapStats instead.
	GapCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpace_gap_total",
			Help: "Number of sequence gaps observed, by phase.",
		}, []string{"phase"})

	// OutOfOrderCount is a per-phase counter of out-of-order arrivals.
	// Nothing in this module increments it, for the same reason as
	// GapCount.
	OutOfOrderCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpace_out_of_order_total",
			Help: "Number of out-of-order arrivals observed, by phase.",
		}, []string{"phase"})

	// FallBehindCount tracks, per phase label, the number of times the
	// client sender detected it had fallen significantly behind its
	// pacing schedule.
	FallBehindCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpace_fall_behind_total",
			Help: "Number of sender fall-behind events, by phase.",
		}, []string{"phase"})

	// LatencyHistogram tracks one-way (or round-trip, if --rtt is set)
	// latency samples collected during a phase.
	LatencyHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "netpace_latency_seconds",
			Help: "Measured latency distribution, by phase.",
			Buckets: []float64{
				0.00001, 0.000025, 0.00005, 0.000075,
				0.0001, 0.00025, 0.0005, 0.00075,
				0.001, 0.0025, 0.005, 0.0075,
				0.01, 0.025, 0.05, 0.075,
				0.1, 0.25, 0.5, 1,
			},
		}, []string{"phase"})

	// SendJitterHistogram tracks the send_lateness values observed by the
	// sender, i.e. how far behind its intended pacing schedule each
	// message actually went out.
	SendJitterHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "netpace_send_jitter_seconds",
			Help: "Sender pacing lateness distribution, by phase.",
			Buckets: []float64{
				0.00001, 0.000025, 0.00005, 0.000075,
				0.0001, 0.00025, 0.0005, 0.00075,
				0.001, 0.0025, 0.005, 0.0075,
				0.01, 0.025, 0.05, 0.075,
			},
		}, []string{"phase"})

	// PhasesRun counts completed measurement phases, labeled by whether
	// the phase stopped because it ran its full duration or because the
	// achieved send rate fell below --stop. Only the progress server's
	// PhaseFinished increments it, so a run without
	// --netpace.progresssocket leaves it at zero.
	PhasesRun = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpace_phases_total",
			Help: "Number of measurement phases completed, by stop reason.",
		}, []string{"reason"})

	// ErrorCount measures the number of errors encountered, by subsystem.
	// Example usage:
	//    metrics.ErrorCount.With(prometheus.Labels{"type": "transport"}).Inc()
	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpace_error_total",
			Help: "The total number of errors encountered.",
		}, []string{"type"})
)

// init() prints a log message to let the user know that the package has
// been loaded and the metrics registered. The metrics are auto-registered,
// which means they are registered as soon as this package is loaded, and
// the exact time this occurs (and whether this occurs at all in a given
// context) can be opaque.
func init() {
	log.Println("Prometheus metrics in netpace.metrics are registered.")
}
