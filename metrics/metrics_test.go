package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/m-lab/netpace/metrics"
)

func TestReflectorRepliesSentIncrements(t *testing.T) {
	before := counterValue(t, metrics.ReflectorRepliesSent)
	metrics.ReflectorRepliesSent.Inc()
	after := counterValue(t, metrics.ReflectorRepliesSent)
	if after != before+1 {
		t.Fatalf("got %v, want %v", after, before+1)
	}
}

func TestLatencyHistogramObserve(t *testing.T) {
	metrics.LatencyHistogram.WithLabelValues("test-phase").Observe(0.001)
	// Observe should not panic and the vec should now have the label.
	if _, err := metrics.LatencyHistogram.GetMetricWithLabelValues("test-phase"); err != nil {
		t.Fatalf("expected label to exist: %v", err)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("could not read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
