package evaluation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/montanaflynn/stats"
	"gopkg.in/guregu/null.v3"
)

// Summary is the spread of one metric column across a run.
type Summary struct {
	Mean float64
	Std  float64
}

// String renders the summary as it is persisted, e.g. "0.91 ± 0.03". An
// undefined value is written as nan and an infinite one as inf.
func (s Summary) String() string {
	return formatSummaryValue(s.Mean) + " ± " + formatSummaryValue(s.Std)
}

func formatSummaryValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ParseSummary reads a cell written by Summary.String.
func ParseSummary(cell string) (Summary, error) {
	var s Summary
	if _, err := fmt.Sscanf(cell, "%g ± %g", &s.Mean, &s.Std); err != nil {
		return s, fmt.Errorf("Cannot parse %q as a mean ± std summary: %w", cell, err)
	}

	return s, nil
}

// SummaryRow reduces one run. Epoch is only set in train mode.
type SummaryRow struct {
	Epoch  null.Int
	Keys   []Key
	Values map[Key]Summary
}

// Columns renders the row for storage.
func (r SummaryRow) Columns() (names, values []string) {
	if r.Epoch.Valid {
		names = append(names, "Epoch")
		values = append(values, strconv.FormatInt(r.Epoch.Int64, 10))
	}

	for _, k := range r.Keys {
		names = append(names, k.String())
		values = append(values, r.Values[k].String())
	}

	return names, values
}

// summaryKeys lists the columns a summary covers, in order, given the family
// toggles.
func (a *Accumulator) summaryKeys() []Key {
	var out []Key

	if a.config.Registration {
		out = append(out, keysFor(FamilyRegistration, KindDice, a.classes)...)
		out = append(out, keysFor(FamilyRegistration, KindHD95, a.classes)...)
		out = append(out, keysFor(FamilyRigid, KindDice, a.classes)...)
		out = append(out, keysFor(FamilyRigid, KindHD95, a.classes)...)

		if a.config.Displacement {
			out = append(out, keysFor(FamilyRegistration, KindDisplacement, a.classes)...)
		}
	}

	if a.config.Segmentation {
		out = append(out, keysFor(FamilySegmentation, KindDice, a.classes)...)
		out = append(out, keysFor(FamilySegmentation, KindHD95, a.classes)...)
	}

	return out
}

// SummarizeRun reduces every enabled column of the current run to its mean
// and sample standard deviation, ignoring NaN cells, then appends the result
// to the summary table and rewrites it in storage. Calling it again without
// new samples appends an identical row.
//
// Every enabled family must have been recorded at least once in the run;
// otherwise the error wraps ErrColumnNotFound.
func (a *Accumulator) SummarizeRun() (SummaryRow, error) {
	out := SummaryRow{Values: make(map[Key]Summary)}

	if a.config.Mode == ModeTrain {
		out.Epoch = null.IntFrom(int64(a.epoch))
	}

	for _, k := range a.summaryKeys() {
		column, exists := a.column(k)
		if !exists {
			return out, fmt.Errorf("%s: %w", k, ErrColumnNotFound)
		}

		out.Keys = append(out.Keys, k)
		out.Values[k] = summarize(column)
	}

	names, values := out.Columns()
	if err := a.summary.Append(names, values); err != nil {
		return out, err
	}

	if err := a.store.WriteTable(a.config.SummaryTableName(), a.summary); err != nil {
		return out, err
	}

	return out, nil
}

// column gathers k across the run. Rows that lack k contribute NaN, and the
// column only exists if at least one row has it.
func (a *Accumulator) column(k Key) ([]float64, bool) {
	out := make([]float64, 0, len(a.run))
	exists := false

	for _, row := range a.run {
		v, ok := row.Metric(k)
		if !ok {
			v = math.NaN()
		}
		exists = exists || ok
		out = append(out, v)
	}

	return out, exists
}

func summarize(column []float64) Summary {
	data := make(stats.Float64Data, 0, len(column))
	for _, v := range column {
		if !math.IsNaN(v) {
			data = append(data, v)
		}
	}

	if data.Len() < 1 {
		return Summary{Mean: math.NaN(), Std: math.NaN()}
	}

	mean, err := data.Mean()
	if err != nil {
		mean = math.NaN()
	}

	// A single value has no sample deviation
	std := math.NaN()
	if data.Len() > 1 {
		if sd, err := stats.StandardDeviationSample(data); err == nil {
			std = sd
		}
	}

	return Summary{Mean: mean, Std: std}
}
