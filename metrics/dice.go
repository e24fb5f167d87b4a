// Package metrics computes per-class similarity between a predicted label
// volume and ground truth. Every kernel returns one value per foreground
// class 1..numClasses-1 followed by the NaN-aware mean of those values.
package metrics

import (
	"fmt"
	"math"

	"github.com/carbocation/segeval/volume"
)

// Dice computes the class-wise Dice coefficient over the flattened volumes.
// A class missing from truth scores NaN and drops out of the mean; a class
// present in truth but missing from pred scores 0.
func Dice(truth, pred volume.Labels, numClasses int) ([]float64, error) {
	if len(truth.Voxels) != len(pred.Voxels) {
		return nil, fmt.Errorf("%w: truth has %d voxels, prediction has %d", volume.ErrShapeMismatch, len(truth.Voxels), len(pred.Voxels))
	}

	out := make([]float64, 0, numClasses)
	for class := 1; class < numClasses; class++ {
		truthMask := truth.Mask(int32(class))
		if !truthMask.Any() {
			out = append(out, math.NaN())
			continue
		}

		predMask := pred.Mask(int32(class))

		dice, err := BinaryDice(predMask.Voxels, truthMask.Voxels)
		if err != nil {
			return nil, err
		}
		out = append(out, dice)
	}

	return withAverage(out), nil
}
