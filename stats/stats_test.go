package stats_test

import (
	"testing"

	"github.com/m-lab/netpace/stats"
)

func TestComputeBasic(t *testing.T) {
	samples := []int64{10, 20, 30, 40, 50}
	s := stats.Compute(samples, 90)
	if s.Min != 10 || s.Max != 50 {
		t.Fatalf("min/max = %d/%d, want 10/50", s.Min, s.Max)
	}
	if s.Mean != 30 {
		t.Fatalf("mean = %d, want 30", s.Mean)
	}
	if s.Median != 30 {
		t.Fatalf("median = %d, want 30", s.Median)
	}
	if s.N != 5 {
		t.Fatalf("N = %d, want 5", s.N)
	}
}

func TestComputeInvariants(t *testing.T) {
	cases := [][]int64{
		{1},
		{5, 5, 5, 5},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		{-10, -5, 0, 5, 10},
	}
	for _, samples := range cases {
		s := stats.Compute(samples, 95)
		if s.Min > s.Mean || s.Mean > s.Max {
			t.Errorf("samples=%v: min<=mean<=max violated: %+v", samples, s)
		}
		if s.Min > s.Percentile || s.Percentile > s.Max {
			t.Errorf("samples=%v: min<=percentile<=max violated: %+v", samples, s)
		}
		if s.StdDev < 0 {
			t.Errorf("samples=%v: stddev negative: %+v", samples, s)
		}
	}
}

func TestComputeEmpty(t *testing.T) {
	s := stats.Compute(nil, 50)
	if s.N != 0 {
		t.Fatalf("N = %d, want 0", s.N)
	}
}

func TestHalveForOneWayLeavesStdDev(t *testing.T) {
	s := stats.Summary{Mean: 100, Min: 20, Median: 80, Max: 200, Percentile: 150, StdDev: 33}
	h := s.HalveForOneWay()
	if h.Mean != 50 || h.Min != 10 || h.Median != 40 || h.Max != 100 || h.Percentile != 75 {
		t.Fatalf("unexpected halved summary: %+v", h)
	}
	if h.StdDev != 33 {
		t.Fatalf("stddev should be left unchanged, got %d", h.StdDev)
	}
}
