package sensor

import (
	"math"
	"slices"
)

// DefaultAnomalyRatio is the std/|mean| ratio above which filtered datapoints
// are attached to a reading.
const DefaultAnomalyRatio = 0.5

// Summary is the reduced form of one acquisition window.
type Summary struct {
	Mean     float64
	Std      float64
	N        int
	Filtered []float64
	// Anomalous is set when Std is large relative to Mean.
	Anomalous bool
}

// MedianFilter applies a width-3 sliding median over values padded with a
// copy of the first and last elements. The output has the same length as the
// input. A spike at either end survives the filter.
func MedianFilter(values []float64) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	padded := make([]float64, 0, n+2)
	padded = append(padded, values[0])
	padded = append(padded, values...)
	padded = append(padded, values[n-1])

	out := make([]float64, n)
	for i := range n {
		out[i] = median3(padded[i], padded[i+1], padded[i+2])
	}
	return out
}

func median3(a, b, c float64) float64 {
	w := [3]float64{a, b, c}
	slices.Sort(w[:])
	return w[1]
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the Bessel-corrected sample standard deviation about mean.
// Fewer than two values yield 0.
func StdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var acc float64
	for _, v := range values {
		d := v - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(values)-1))
}

// Summarize filters raw and computes its statistics. anomalyRatio <= 0 falls
// back to DefaultAnomalyRatio.
func Summarize(raw []float64, anomalyRatio float64) Summary {
	if anomalyRatio <= 0 {
		anomalyRatio = DefaultAnomalyRatio
	}
	filtered := MedianFilter(raw)
	mean := Mean(filtered)
	std := StdDev(filtered, mean)
	return Summary{
		Mean:      mean,
		Std:       std,
		N:         len(filtered),
		Filtered:  filtered,
		Anomalous: isAnomalous(mean, std, anomalyRatio),
	}
}

func isAnomalous(mean, std, ratio float64) bool {
	if std == 0 {
		return false
	}
	if mean == 0 {
		return true
	}
	return std/math.Abs(mean) > ratio
}

// Values converts samples to the float sequence the filter expects.
func Values(samples []RawSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s.Value)
	}
	return out
}
