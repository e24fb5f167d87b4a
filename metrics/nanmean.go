package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NaNMean is the arithmetic mean of the non-NaN entries of x, or NaN if there
// are none.
func NaNMean(x []float64) float64 {
	kept := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			kept = append(kept, v)
		}
	}

	if len(kept) == 0 {
		return math.NaN()
	}

	return stat.Mean(kept, nil)
}

// withAverage appends the NaN-aware mean of perClass as its final entry.
func withAverage(perClass []float64) []float64 {
	return append(perClass, NaNMean(perClass))
}
