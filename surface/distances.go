// Package surface measures distances between the boundary surfaces of two
// binary masks, in physical units.
package surface

import (
	"fmt"
	"math"

	"github.com/carbocation/segeval/volume"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"
)

// Distances holds, for each direction, the distance from every surface
// element of one mask to the nearest surface element of the other. Each
// distance slice is sorted ascending and its area slice is permuted with it.
type Distances struct {
	TruthToPred []float64
	TruthAreas  []float64
	PredToTruth []float64
	PredAreas   []float64
}

// surfels are the boundary voxels of a mask: their physical centres and the
// area of their faces that touch background or the edge of the volume.
type surfels struct {
	points kdtree.Points
	areas  []float64
}

// ComputeSurfaceDistances finds the surfaces of truth and pred and measures
// every surface element of each against the other. When one surface is
// empty, every distance measured towards it is +Inf.
func ComputeSurfaceDistances(truth, pred volume.Mask, spacing volume.Spacing) (Distances, error) {
	if len(truth.Shape) != 3 {
		return Distances{}, fmt.Errorf("%w: surface distances need a 3D mask, got shape %v", volume.ErrShapeMismatch, truth.Shape)
	}
	if !volume.SameShape(truth.Shape, pred.Shape) {
		return Distances{}, fmt.Errorf("%w: truth mask %v, predicted mask %v", volume.ErrShapeMismatch, truth.Shape, pred.Shape)
	}

	truthSurface := findSurfels(truth, spacing)
	predSurface := findSurfels(pred, spacing)

	out := Distances{
		TruthToPred: nearest(truthSurface.points, predSurface.points),
		TruthAreas:  truthSurface.areas,
		PredToTruth: nearest(predSurface.points, truthSurface.points),
		PredAreas:   predSurface.areas,
	}

	stat.SortWeighted(out.TruthToPred, out.TruthAreas)
	stat.SortWeighted(out.PredToTruth, out.PredAreas)

	return out, nil
}

func findSurfels(m volume.Mask, spacing volume.Spacing) surfels {
	xm, ym, zm := m.Shape[0], m.Shape[1], m.Shape[2]

	// Area of a face perpendicular to each axis
	faceArea := [3]float64{
		spacing[1] * spacing[2],
		spacing[0] * spacing[2],
		spacing[0] * spacing[1],
	}

	set := func(x, y, z int) bool {
		if x < 0 || y < 0 || z < 0 || x >= xm || y >= ym || z >= zm {
			return false
		}
		return m.Voxels[(x*ym+y)*zm+z]
	}

	var out surfels
	for x := 0; x < xm; x++ {
		for y := 0; y < ym; y++ {
			for z := 0; z < zm; z++ {
				if !set(x, y, z) {
					continue
				}

				var area float64
				for axis, step := range [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
					if !set(x+step[0], y+step[1], z+step[2]) {
						area += faceArea[axis]
					}
					if !set(x-step[0], y-step[1], z-step[2]) {
						area += faceArea[axis]
					}
				}

				if area == 0 {
					continue
				}

				out.points = append(out.points, kdtree.Point{
					float64(x) * spacing[0],
					float64(y) * spacing[1],
					float64(z) * spacing[2],
				})
				out.areas = append(out.areas, area)
			}
		}
	}

	return out
}

// nearest returns the Euclidean distance from each query point to the
// closest target point. The query slice is not modified.
func nearest(queries, targets kdtree.Points) []float64 {
	out := make([]float64, len(queries))

	if len(targets) == 0 {
		for i := range out {
			out[i] = math.Inf(1)
		}
		return out
	}

	// kdtree.New reorders its input
	tree := kdtree.New(append(kdtree.Points(nil), targets...), false)

	for i, q := range queries {
		_, d := tree.Nearest(q)

		// Point.Distance is the squared Euclidean distance
		out[i] = math.Sqrt(d)
	}

	return out
}
