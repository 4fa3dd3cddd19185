package sensor

import (
	"math"
	"testing"
)

func TestMedianFilterPreservesLength(t *testing.T) {
	for n := 1; n <= 12; n++ {
		in := make([]float64, n)
		for i := range in {
			in[i] = float64((i * 37) % 11)
		}
		if got := MedianFilter(in); len(got) != n {
			t.Fatalf("len(MedianFilter(%d values)) = %d", n, len(got))
		}
	}
	if MedianFilter(nil) != nil {
		t.Fatal("empty input should produce nil")
	}
}

func TestMedianFilterRemovesInteriorSpike(t *testing.T) {
	got := MedianFilter([]float64{500, 500, 900, 500, 500})
	for i, v := range got {
		if v != 500 {
			t.Fatalf("filtered[%d] = %v, want 500", i, v)
		}
	}
}

func TestMedianFilterKeepsBoundarySpike(t *testing.T) {
	got := MedianFilter([]float64{900, 500, 500, 500})
	if got[0] != 900 {
		t.Fatalf("first value = %v, want boundary spike 900 kept", got[0])
	}
	got = MedianFilter([]float64{500, 500, 500, 10})
	if got[len(got)-1] != 10 {
		t.Fatalf("last value = %v, want boundary spike 10 kept", got[len(got)-1])
	}
}

func TestSummarizeConstantInput(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		in := make([]float64, n)
		for i := range in {
			in[i] = 612
		}
		s := Summarize(in, 0)
		if s.Mean != 612 || s.Std != 0 || s.N != n {
			t.Fatalf("n=%d: got mean=%v std=%v N=%d", n, s.Mean, s.Std, s.N)
		}
		if s.Anomalous {
			t.Fatalf("n=%d: constant input flagged anomalous", n)
		}
	}
}

func TestSummarizeStdDevIsBesselCorrected(t *testing.T) {
	// Monotonic input passes through the median filter unchanged.
	s := Summarize([]float64{1, 2, 3, 4}, 0)
	want := math.Sqrt(5.0 / 3.0)
	if math.Abs(s.Std-want) > 1e-12 {
		t.Fatalf("std = %v, want %v", s.Std, want)
	}
	if s.Mean != 2.5 {
		t.Fatalf("mean = %v, want 2.5", s.Mean)
	}
}

func TestSummarizeAnomaly(t *testing.T) {
	s := Summarize([]float64{1, 1, 100, 100, 100}, 0.5)
	if !s.Anomalous {
		t.Fatalf("expected anomaly, std=%v mean=%v", s.Std, s.Mean)
	}
	s = Summarize([]float64{100, 101, 102, 101}, 0.5)
	if s.Anomalous {
		t.Fatal("low variance flagged anomalous")
	}
	s = Summarize([]float64{-1, -1, 1, 1}, 0.5)
	if !s.Anomalous {
		t.Fatal("zero mean with spread should be anomalous")
	}
}
