package evaluation

import (
	"math"
	"strconv"
)

// Field is one caller-supplied, non-metric column of a row, such as a sample
// identifier.
type Field struct {
	Name  string
	Value string
}

// MetricRow is the result of scoring one sample: the caller's info fields
// followed by metric columns in the order they were computed.
type MetricRow struct {
	Info    []Field
	Keys    []Key
	Metrics map[Key]float64
}

func newMetricRow(info []Field) MetricRow {
	return MetricRow{
		Info:    append([]Field(nil), info...),
		Metrics: make(map[Key]float64),
	}
}

// Metric returns the value stored under k.
func (r MetricRow) Metric(k Key) (float64, bool) {
	v, exists := r.Metrics[k]
	return v, exists
}

// set stores v under k, keeping the first position k was seen at.
func (r *MetricRow) set(k Key, v float64) {
	if _, exists := r.Metrics[k]; !exists {
		r.Keys = append(r.Keys, k)
	}
	r.Metrics[k] = v
}

// setAll unpacks a per-class metric vector positionally onto keys.
func (r *MetricRow) setAll(keys []Key, values []float64) {
	for i, k := range keys {
		if i < len(values) {
			r.set(k, values[i])
		}
	}
}

// Columns renders the row for storage: names and values, positionally
// aligned.
func (r MetricRow) Columns() (names, values []string) {
	names = make([]string, 0, len(r.Info)+len(r.Keys))
	values = make([]string, 0, len(r.Info)+len(r.Keys))

	for _, f := range r.Info {
		names = append(names, f.Name)
		values = append(values, f.Value)
	}
	for _, k := range r.Keys {
		names = append(names, k.String())
		values = append(values, FormatMetric(r.Metrics[k]))
	}

	return names, values
}

// FormatMetric renders a metric cell. NaN is written as an empty cell.
func FormatMetric(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseMetric reads a cell written by FormatMetric.
func ParseMetric(cell string) (float64, error) {
	if cell == "" {
		return math.NaN(), nil
	}

	return strconv.ParseFloat(cell, 64)
}
