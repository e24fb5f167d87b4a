package metrics

import (
	"fmt"
	"math"

	"github.com/carbocation/runningvariance"
	"github.com/carbocation/segeval/volume"
)

// Displacement computes, for every class, the mean Euclidean magnitude of the
// deformation field over the voxels that pred assigns to that class. A class
// with no voxels scores NaN.
func Displacement(field volume.Field, pred volume.Labels, numClasses int) ([]float64, error) {
	pred = pred.Squeeze()
	field = field.Squeeze()

	if len(field.Shape) < 1 || field.Shape[0] != 3 || !volume.SameShape(field.Shape[1:], pred.Shape) {
		return nil, fmt.Errorf("%w: field %v does not cover prediction %v", volume.ErrShapeMismatch, field.Shape, pred.Shape)
	}

	n := len(pred.Voxels)
	dx, dy, dz := field.Components[:n], field.Components[n:2*n], field.Components[2*n:]

	// One pass over the volume, one running mean per class
	classStats := make([]*runningvariance.RunningStat, numClasses)
	for class := 1; class < numClasses; class++ {
		classStats[class] = runningvariance.NewRunningStat()
	}

	for i, class := range pred.Voxels {
		if class < 1 || int(class) >= numClasses {
			continue
		}

		magnitude := math.Sqrt(dx[i]*dx[i] + dy[i]*dy[i] + dz[i]*dz[i])
		if math.IsNaN(magnitude) {
			continue
		}

		classStats[class].Push(magnitude)
	}

	out := make([]float64, 0, numClasses)
	for class := 1; class < numClasses; class++ {
		if classStats[class].N == 0 {
			out = append(out, math.NaN())
			continue
		}
		out = append(out, classStats[class].Mean())
	}

	return withAverage(out), nil
}
