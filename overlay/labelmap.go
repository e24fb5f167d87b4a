package overlay

import (
	"fmt"
	"sort"
)

// A Label tracks the segmentation ID with the human-identifiable Label and
// human-interpretable color (in RGB hex, e.g., #FF0000 for red).
type Label struct {
	Label     string
	ID        uint   `json:"id"`
	Color     string `json:"color"`
	SortOrder int    `json:"sort_order,omitempty"`
}

// LabelMap ([string label name]Label) keeps track of the relationship between
// human-visible names and the segmentation ID of that label.
type LabelMap map[string]Label

// Valid ensures that the LabelMap is valid by testing that it is bijective.
func (l LabelMap) Valid() bool {
	inverse := make(map[uint]string)
	for k, v := range l {
		inverse[v.ID] = k
	}

	return len(l) == len(inverse)
}

// Sorted returns the labels ordered by SortOrder, then by ID.
func (l LabelMap) Sorted() []Label {
	out := make([]Label, 0, len(l))

	for k, v := range l {
		v.Label = k
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		// If SortOrder is defined and different, use it:
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}

		// If SortOrder is not defined, or is the same for two values, drop down
		// to the ID field for sorting
		return out[i].ID < out[j].ID
	})

	return out
}

// ClassNames lists the foreground label names in class-index order, so that
// entry i names class i+1. Background (ID 0) is excluded. The IDs must run
// consecutively from 1, otherwise positional naming would be wrong.
func (l LabelMap) ClassNames() ([]string, error) {
	byID := make(map[uint]string, len(l))
	for k, v := range l {
		if v.ID == 0 {
			continue
		}
		byID[v.ID] = k
	}

	out := make([]string, 0, len(byID))
	for id := uint(1); id <= uint(len(byID)); id++ {
		name, exists := byID[id]
		if !exists {
			return nil, fmt.Errorf("Label IDs must be consecutive from 1, but ID %d is missing from %+v", id, l)
		}
		out = append(out, name)
	}

	return out, nil
}
