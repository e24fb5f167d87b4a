package evaluation

// AverageClass names the synthetic trailing class that carries the NaN-aware
// mean over the real classes.
const AverageClass = "Avg"

// ClassList names the foreground classes in class-index order (entry i is
// class i+1) and always ends with AverageClass.
type ClassList []string

// NewClassList returns a new list holding names followed by AverageClass.
// names itself is left untouched.
func NewClassList(names []string) ClassList {
	out := make(ClassList, 0, len(names)+1)
	out = append(out, names...)

	return append(out, AverageClass)
}

// NumClasses is the class count the metric kernels expect: the foreground
// classes plus background. The trailing Avg entry stands in for background in
// the count, so this is simply the list length.
func (c ClassList) NumClasses() int {
	return len(c)
}
