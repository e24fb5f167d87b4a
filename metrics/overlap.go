package metrics

import "fmt"

// overlap tallies the agreement between two binary masks of equal length.
type overlap struct {
	Agreed int64
	Only1  int64
	Only2  int64
}

func countOverlap(a, b []bool) (overlap, error) {
	var v overlap

	if len(a) != len(b) {
		return v, fmt.Errorf("Mask lengths differ: %d and %d", len(a), len(b))
	}

	for i := range a {
		switch {
		case a[i] && b[i]:
			v.Agreed++
		case a[i]:
			v.Only1++
		case b[i]:
			v.Only2++
		}
	}

	return v, nil
}

// Dice is 2|A∩B| / (|A|+|B|), or 0 when both masks are empty.
func (v overlap) Dice() float64 {
	denom := float64(2*v.Agreed + v.Only1 + v.Only2)

	if denom == 0 {
		return 0
	}

	return float64(2*v.Agreed) / denom
}

// BinaryDice is the volumetric Dice overlap of two boolean masks. A mask that
// is empty on one side only yields 0.
func BinaryDice(a, b []bool) (float64, error) {
	v, err := countOverlap(a, b)
	if err != nil {
		return 0, err
	}

	return v.Dice(), nil
}
