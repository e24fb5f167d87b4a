// Package volume holds the dense label volumes and deformation fields that
// the metric kernels consume, along with loaders for the on-disk formats
// they usually arrive in.
package volume

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when two arrays that must share a spatial
// domain do not.
var ErrShapeMismatch = errors.New("shape mismatch")

// Spacing is the physical size of a voxel along each of the three axes, in
// the same order as the volume's axes.
type Spacing [3]float64

// Labels is a dense, row-major array of class indices. Class 0 is
// background.
type Labels struct {
	Shape  []int
	Voxels []int32
}

// NewLabels checks that the voxel count agrees with the shape.
func NewLabels(shape []int, voxels []int32) (Labels, error) {
	if n := product(shape); n != len(voxels) {
		return Labels{}, fmt.Errorf("%w: shape %v holds %d voxels, got %d", ErrShapeMismatch, shape, n, len(voxels))
	}

	return Labels{Shape: append([]int(nil), shape...), Voxels: voxels}, nil
}

// Squeeze returns a view of l without its singleton axes. The voxels are
// shared, not copied.
func (l Labels) Squeeze() Labels {
	return Labels{Shape: squeezeShape(l.Shape), Voxels: l.Voxels}
}

// Mask returns the voxels equal to class.
func (l Labels) Mask(class int32) Mask {
	out := Mask{
		Shape:  l.Shape,
		Voxels: make([]bool, len(l.Voxels)),
	}
	for i, v := range l.Voxels {
		out.Voxels[i] = v == class
	}

	return out
}

// Mask is a boolean volume with the same layout as Labels.
type Mask struct {
	Shape  []int
	Voxels []bool
}

// Any reports whether at least one voxel is set.
func (m Mask) Any() bool {
	for _, v := range m.Voxels {
		if v {
			return true
		}
	}

	return false
}

// Field is a three-component displacement field. After squeezing, Shape[0]
// is 3 and the remaining axes match the spatial shape of the labels it
// describes. Components are stored component-major: every x displacement,
// then every y, then every z.
type Field struct {
	Shape      []int
	Components []float64
}

// NewField checks that the component count agrees with the shape.
func NewField(shape []int, components []float64) (Field, error) {
	if n := product(shape); n != len(components) {
		return Field{}, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrShapeMismatch, shape, n, len(components))
	}

	return Field{Shape: append([]int(nil), shape...), Components: components}, nil
}

// Squeeze returns a view of f without its singleton axes.
func (f Field) Squeeze() Field {
	return Field{Shape: squeezeShape(f.Shape), Components: f.Components}
}

// SameShape reports whether two shapes have identical extents.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func squeezeShape(shape []int) []int {
	out := make([]int, 0, len(shape))
	for _, v := range shape {
		if v != 1 {
			out = append(out, v)
		}
	}

	return out
}

func product(shape []int) int {
	n := 1
	for _, v := range shape {
		n *= v
	}

	return n
}
