package evaluation

import (
	"fmt"
	"strings"
)

// Family groups the columns produced from one prediction.
type Family string

const (
	FamilyRegistration Family = "Reg"
	FamilyRigid        Family = "Rigid"
	FamilySegmentation Family = "Seg"
)

// Kind is the metric a column holds.
type Kind string

const (
	KindDice         Kind = "Dice"
	KindHD95         Kind = "HD95"
	KindDisplacement Kind = "Displacement"
)

// Key identifies one metric column. It is only rendered to its display name
// when a table is written.
type Key struct {
	Family Family
	Class  string
	Kind   Kind
}

// String is the persisted column name, {Family}_{Class}_{Kind}.
func (k Key) String() string {
	return string(k.Family) + "_" + k.Class + "_" + string(k.Kind)
}

// ParseKey recovers a Key from a persisted column name. Class names may
// themselves contain underscores; the family is the first token and the kind
// the last.
func ParseKey(column string) (Key, error) {
	first := strings.Index(column, "_")
	last := strings.LastIndex(column, "_")
	if first < 0 || first == last {
		return Key{}, fmt.Errorf("Column %q is not of the form Family_Class_Kind", column)
	}

	k := Key{
		Family: Family(column[:first]),
		Class:  column[first+1 : last],
		Kind:   Kind(column[last+1:]),
	}

	switch k.Family {
	case FamilyRegistration, FamilyRigid, FamilySegmentation:
	default:
		return Key{}, fmt.Errorf("Column %q has unknown family %q", column, k.Family)
	}

	switch k.Kind {
	case KindDice, KindHD95, KindDisplacement:
	default:
		return Key{}, fmt.Errorf("Column %q has unknown metric %q", column, k.Kind)
	}

	return k, nil
}

// keysFor lays out one column per class for a family and metric.
func keysFor(family Family, kind Kind, classes ClassList) []Key {
	out := make([]Key, 0, len(classes))
	for _, class := range classes {
		out = append(out, Key{Family: family, Class: class, Kind: kind})
	}

	return out
}
