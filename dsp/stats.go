package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Statistical reductions shared by the feature extractors. Every reduction
// filters non-finite values first; a reduction over a slice with no finite
// values reports ok=false instead of propagating NaN.

// FiniteValues returns the finite entries of data, in order.
func FiniteValues(data []float64) []float64 {
	finite := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	return finite
}

// FiniteMean calculates the arithmetic mean over finite values using gonum.
func FiniteMean(data []float64) (float64, bool) {
	finite := FiniteValues(data)
	if len(finite) == 0 {
		return 0, false
	}
	return stat.Mean(finite, nil), true
}

// FiniteMedian calculates the median over finite values using gonum.
func FiniteMedian(data []float64) (float64, bool) {
	finite := FiniteValues(data)
	if len(finite) == 0 {
		return 0, false
	}
	sort.Float64s(finite)
	return stat.Quantile(0.5, stat.Empirical, finite, nil), true
}

// RMS calculates root mean square of the signal.
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return math.Sqrt(sumSquares / float64(len(data)))
}
