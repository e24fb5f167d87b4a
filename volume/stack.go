package volume

import (
	"fmt"
	"image"

	"github.com/carbocation/segeval/overlay"
)

// LabelsFromImageStack builds a label volume from ID-encoded mask slices
// (#010101 for class 1, #020202 for class 2, ...). Slices become the last
// axis, so the shape is (x, y, slice).
func LabelsFromImageStack(slices []image.Image) (Labels, error) {
	if len(slices) == 0 {
		return Labels{}, fmt.Errorf("No slices in the image stack")
	}

	r := slices[0].Bounds()
	xm, ym, zm := r.Dx(), r.Dy(), len(slices)

	for z, img := range slices {
		if img.Bounds() != r {
			return Labels{}, fmt.Errorf("%w: slice %d has bounds %v, slice 0 has %v", ErrShapeMismatch, z, img.Bounds(), r)
		}
	}

	voxels := make([]int32, xm*ym*zm)
	for z, img := range slices {
		for y := 0; y < ym; y++ {
			for x := 0; x < xm; x++ {
				id, err := overlay.LabeledPixelToID(img.At(r.Min.X+x, r.Min.Y+y))
				if err != nil {
					return Labels{}, fmt.Errorf("slice %d (%d, %d): %w", z, x, y, err)
				}
				voxels[(x*ym+y)*zm+z] = int32(id)
			}
		}
	}

	return NewLabels([]int{xm, ym, zm}, voxels)
}
