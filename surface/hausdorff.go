package surface

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ComputeRobustHausdorff returns the surface distance below which percent of
// the surface area lies, taking the larger of the two directions. A direction
// with no surface yields +Inf. percent is clamped to [0, 100].
func ComputeRobustHausdorff(d Distances, percent float64) float64 {
	p := math.Min(math.Max(percent/100, 0), 1)

	return math.Max(
		percentileDistance(d.TruthToPred, d.TruthAreas, p),
		percentileDistance(d.PredToTruth, d.PredAreas, p),
	)
}

func percentileDistance(distances, areas []float64, p float64) float64 {
	if len(distances) == 0 {
		return math.Inf(1)
	}

	// The lowest distance at which the cumulative surface area reaches p
	return stat.Quantile(p, stat.Empirical, distances, areas)
}
