package metrics

import (
	"fmt"

	"github.com/carbocation/segeval/surface"
	"github.com/carbocation/segeval/volume"
)

// HausdorffPercentile is the percentile used for the robust Hausdorff
// distance.
const HausdorffPercentile = 95.0

// HD95 computes the class-wise 95th percentile Hausdorff distance in the
// physical units of spacing. Empty masks are not special-cased: whatever the
// surface primitives return for them (+Inf) is reported as is.
func HD95(truth, pred volume.Labels, spacing volume.Spacing, numClasses int) ([]float64, error) {
	truth = truth.Squeeze()
	pred = pred.Squeeze()

	out := make([]float64, 0, numClasses)
	for class := 1; class < numClasses; class++ {
		distances, err := surface.ComputeSurfaceDistances(truth.Mask(int32(class)), pred.Mask(int32(class)), spacing)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", class, err)
		}

		out = append(out, surface.ComputeRobustHausdorff(distances, HausdorffPercentile))
	}

	return withAverage(out), nil
}
