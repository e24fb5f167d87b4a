// Package evaluation scores predicted label volumes against ground truth,
// accumulates one row per sample across a run, and reduces each run to a
// mean ± standard deviation summary. Every table is written through to
// storage as soon as it changes.
package evaluation

import (
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/segeval/metrics"
	"github.com/carbocation/segeval/tablestore"
	"github.com/carbocation/segeval/volume"
)

// ErrColumnNotFound is returned by SummarizeRun when an enabled family was
// never recorded in the current run.
var ErrColumnNotFound = errors.New("column not found in run table")

// TableStore is the persistence the Accumulator writes through to.
type TableStore interface {
	WriteTable(name string, t *tablestore.Table) error
	ReadTable(name string) (*tablestore.Table, error)
}

// Accumulator holds the current run's per-sample rows and the cross-run
// summary table. It is not safe for concurrent use.
type Accumulator struct {
	config  Config
	classes ClassList
	store   TableStore

	epoch   int
	run     []MetricRow
	summary *tablestore.Table
}

// New builds an Accumulator over store. config.Classes is copied; the caller's
// slice is never modified.
func New(config Config, store TableStore) (*Accumulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.Classes = append([]string(nil), config.Classes...)

	return &Accumulator{
		config:  config,
		classes: NewClassList(config.Classes),
		store:   store,
		summary: tablestore.New(),
	}, nil
}

// Open builds an Accumulator that stores its tables under config.Root.
// client is only needed for gs:// roots.
func Open(config Config, client *storage.Client) (*Accumulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := tablestore.Open(config.Root, client)
	if err != nil {
		return nil, err
	}

	return New(config, store)
}

// Classes returns the class list, including the trailing Avg.
func (a *Accumulator) Classes() ClassList {
	return append(ClassList(nil), a.classes...)
}

// Epoch is the epoch set by the last BeginEpoch.
func (a *Accumulator) Epoch() int {
	return a.epoch
}

// Rows returns the rows recorded so far in the current run.
func (a *Accumulator) Rows() []MetricRow {
	return append([]MetricRow(nil), a.run...)
}

// SummaryTable returns the cross-run summary table, including any rows
// loaded by LoadPriorSummary.
func (a *Accumulator) SummaryTable() *tablestore.Table {
	return a.summary
}

// BeginEpoch starts a new run table for epoch. In train mode this must be
// called before the epoch's first RecordSample.
func (a *Accumulator) BeginEpoch(epoch int) {
	a.epoch = epoch
	a.run = nil
}

// LoadPriorSummary replaces the summary table with the one persisted for
// this mode, so that new summary rows extend it. A missing table is not an
// error: it is logged and the summary stays empty.
func (a *Accumulator) LoadPriorSummary() error {
	name := a.config.SummaryTableName()

	prior, err := a.store.ReadTable(name)
	if errors.Is(err, tablestore.ErrNotFound) {
		log.Printf("%s not found, starting a new summary table\n", name)
		return nil
	} else if err != nil {
		return pfx.Err(err)
	}

	a.summary = prior

	return nil
}

// ResumeEpoch begins epoch and reloads whatever rows were already written
// for it, e.g. after a crash. Columns that name a metric are read back as
// numbers; every other column becomes an info field.
func (a *Accumulator) ResumeEpoch(epoch int) error {
	a.BeginEpoch(epoch)

	name := a.config.RunTableName(epoch)
	prior, err := a.store.ReadTable(name)
	if errors.Is(err, tablestore.ErrNotFound) {
		log.Printf("%s not found, starting epoch %d from scratch\n", name, epoch)
		return nil
	} else if err != nil {
		return pfx.Err(err)
	}

	columns := prior.Columns()
	keys := make([]*Key, len(columns))
	for i, col := range columns {
		if k, err := ParseKey(col); err == nil {
			keys[i] = &k
		}
	}

	rows := make([]MetricRow, 0, prior.Len())
	for i := 0; i < prior.Len(); i++ {
		row := newMetricRow(nil)
		for j, col := range columns {
			cell, _ := prior.Value(i, col)

			if keys[j] == nil {
				row.Info = append(row.Info, Field{Name: col, Value: cell})
				continue
			}

			v, err := ParseMetric(cell)
			if err != nil {
				return fmt.Errorf("%s row %d column %s: %w", name, i+1, col, err)
			}
			row.set(*keys[j], v)
		}
		rows = append(rows, row)
	}

	a.run = rows

	return nil
}

// RecordSample scores one sample against truth, appends the row to the run
// table and rewrites the run table in storage. info seeds the row and is not
// modified. Each prediction family may be given at most once.
//
// A Registration produces Reg_ and Rigid_ Dice and HD95 columns, plus
// Reg_..._Displacement when it carries a Field. A Segmentation produces Seg_
// Dice and HD95 columns.
func (a *Accumulator) RecordSample(info []Field, spacing volume.Spacing, truth volume.Labels, predictions ...Prediction) (MetricRow, error) {
	row := newMetricRow(info)

	var reg *Registration
	var seg *Segmentation
	for _, p := range predictions {
		switch p := p.(type) {
		case Registration:
			if reg != nil {
				return row, fmt.Errorf("%s prediction given more than once", p.family())
			}
			reg = &p
		case Segmentation:
			if seg != nil {
				return row, fmt.Errorf("%s prediction given more than once", p.family())
			}
			seg = &p
		default:
			return row, fmt.Errorf("Unsupported prediction type %T", p)
		}
	}

	// Registration columns always precede segmentation columns
	if reg != nil {
		if err := a.scoreRegistration(&row, spacing, truth, *reg); err != nil {
			return row, err
		}
	}

	if seg != nil {
		if err := a.scoreOverlap(&row, FamilySegmentation, spacing, truth, seg.Predicted); err != nil {
			return row, err
		}
	}

	a.run = append(a.run, row)

	if err := a.persistRun(); err != nil {
		return row, err
	}

	return row, nil
}

func (a *Accumulator) scoreRegistration(row *MetricRow, spacing volume.Spacing, truth volume.Labels, p Registration) error {
	if err := a.scoreOverlap(row, FamilyRegistration, spacing, truth, p.Warped); err != nil {
		return err
	}

	if p.Field != nil {
		disp, err := metrics.Displacement(*p.Field, p.Warped, a.classes.NumClasses())
		if err != nil {
			return fmt.Errorf("%s displacement: %w", FamilyRegistration, err)
		}
		row.setAll(keysFor(FamilyRegistration, KindDisplacement, a.classes), disp)
	}

	// The rigid baseline is always scored alongside a registration
	return a.scoreOverlap(row, FamilyRigid, spacing, truth, p.Rigid)
}

func (a *Accumulator) scoreOverlap(row *MetricRow, family Family, spacing volume.Spacing, truth, pred volume.Labels) error {
	numClasses := a.classes.NumClasses()

	dice, err := metrics.Dice(truth, pred, numClasses)
	if err != nil {
		return fmt.Errorf("%s Dice: %w", family, err)
	}

	hd95, err := metrics.HD95(truth, pred, spacing, numClasses)
	if err != nil {
		return fmt.Errorf("%s HD95: %w", family, err)
	}

	row.setAll(keysFor(family, KindDice, a.classes), dice)
	row.setAll(keysFor(family, KindHD95, a.classes), hd95)

	return nil
}

func (a *Accumulator) persistRun() error {
	t := tablestore.New()
	for _, row := range a.run {
		names, values := row.Columns()
		if err := t.Append(names, values); err != nil {
			return err
		}
	}

	return a.store.WriteTable(a.config.RunTableName(a.epoch), t)
}
