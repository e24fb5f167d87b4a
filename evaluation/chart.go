package evaluation

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"
)

// RenderSummaryChart draws the mean Avg Dice of every enabled family across
// the rows of the summary table as a PNG. The x axis is the epoch when the
// table has one, the row number otherwise.
func (a *Accumulator) RenderSummaryChart(w io.Writer) error {
	var families []Family
	if a.config.Registration {
		families = append(families, FamilyRegistration, FamilyRigid)
	}
	if a.config.Segmentation {
		families = append(families, FamilySegmentation)
	}

	t := a.summary
	if t.Len() == 0 {
		return fmt.Errorf("The summary table has no rows to plot")
	}

	xs := make([]float64, t.Len())
	for i := range xs {
		xs[i] = float64(i)
		if cell, ok := t.Value(i, "Epoch"); ok {
			if epoch, err := strconv.ParseFloat(cell, 64); err == nil {
				xs[i] = epoch
			}
		}
	}

	var series []chart.Series
	for _, family := range families {
		column := Key{Family: family, Class: AverageClass, Kind: KindDice}.String()
		if !t.HasColumn(column) {
			continue
		}

		s := chart.ContinuousSeries{Name: string(family)}
		for i := 0; i < t.Len(); i++ {
			cell, _ := t.Value(i, column)
			summary, err := ParseSummary(cell)
			if err != nil || math.IsNaN(summary.Mean) || math.IsInf(summary.Mean, 0) {
				continue
			}
			s.XValues = append(s.XValues, xs[i])
			s.YValues = append(s.YValues, summary.Mean)
		}

		if len(s.XValues) > 0 {
			series = append(series, s)
		}
	}

	if len(series) == 0 {
		return fmt.Errorf("The summary table has no Avg Dice values to plot")
	}

	// go-chart refuses zero-width ranges, which a single run would produce
	xMin, xMax := xs[0], xs[0]
	for _, x := range xs {
		xMin, xMax = math.Min(xMin, x), math.Max(xMax, x)
	}
	if xMax <= xMin {
		xMax = xMin + 1
	}

	graph := chart.Chart{
		Width:  768,
		Height: 384,
		XAxis: chart.XAxis{
			Name:  "Epoch",
			Range: &chart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: chart.YAxis{
			Name:  "Avg Dice",
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return pfx.Err(graph.Render(chart.PNG, w))
}
