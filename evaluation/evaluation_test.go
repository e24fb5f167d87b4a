package evaluation

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/segeval/tablestore"
	"github.com/carbocation/segeval/volume"
)

func filled(t *testing.T, shape []int, class int32) volume.Labels {
	t.Helper()

	n := 1
	for _, v := range shape {
		n *= v
	}
	voxels := make([]int32, n)
	for i := range voxels {
		voxels[i] = class
	}

	l, err := volume.NewLabels(shape, voxels)
	if err != nil {
		t.Fatal(err)
	}

	return l
}

func newAccumulator(t *testing.T, config Config) (*Accumulator, string) {
	t.Helper()

	config.Root = t.TempDir()
	acc, err := Open(config, nil)
	if err != nil {
		t.Fatal(err)
	}

	return acc, config.Root
}

func segConfig(mode Mode) Config {
	return Config{
		Classes:      []string{"Organ"},
		Segmentation: true,
		Mode:         mode,
	}
}

func countDataRows(t *testing.T, path string) int {
	t.Helper()

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")

	return len(lines) - 1
}

func TestNewClassListDoesNotMutate(t *testing.T) {
	names := make([]string, 2, 10)
	names[0], names[1] = "LV", "RV"

	classes := NewClassList(names)
	if len(classes) != 3 || classes[2] != AverageClass {
		t.Fatalf("Expected [LV RV Avg], got %v", classes)
	}

	// Spare capacity in the caller's slice must not be written to
	if extended := names[:3]; extended[2] != "" {
		t.Errorf("The caller's backing array was modified: %v", extended)
	}
	if len(names) != 2 {
		t.Errorf("The caller's list changed length: %v", names)
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("Reg_Left_Ventricle_Displacement")
	if err != nil {
		t.Fatal(err)
	}
	if k != (Key{FamilyRegistration, "Left_Ventricle", KindDisplacement}) {
		t.Errorf("Got %+v", k)
	}
	if k.String() != "Reg_Left_Ventricle_Displacement" {
		t.Errorf("Got %q", k.String())
	}

	for _, bad := range []string{"ID", "Seg_Dice", "Foo_Organ_Dice", "Seg_Organ_Volume"} {
		if _, err := ParseKey(bad); err == nil {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestRecordSampleSegmentation(t *testing.T) {
	acc, _ := newAccumulator(t, segConfig(ModeTest))

	if classes := acc.Classes(); len(classes) != 2 || classes[0] != "Organ" || classes[1] != AverageClass {
		t.Errorf("Expected [Organ Avg], got %v", classes)
	}

	gt := filled(t, []int{4, 4, 4}, 1)
	row, err := acc.RecordSample([]Field{{"ID", "case001"}}, volume.Spacing{1, 1, 1}, gt, Segmentation{Predicted: gt})
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []struct {
		key      Key
		expected float64
	}{
		{Key{FamilySegmentation, "Organ", KindDice}, 1},
		{Key{FamilySegmentation, AverageClass, KindDice}, 1},
		{Key{FamilySegmentation, "Organ", KindHD95}, 0},
		{Key{FamilySegmentation, AverageClass, KindHD95}, 0},
	} {
		got, ok := row.Metric(v.key)
		if !ok {
			t.Fatalf("Missing column %s", v.key)
		}
		if got != v.expected {
			t.Errorf("%s: expected %g, got %g", v.key, v.expected, got)
		}
	}

	if _, ok := row.Metric(Key{FamilyRegistration, "Organ", KindDice}); ok {
		t.Error("Did not expect registration columns")
	}

	names, _ := row.Columns()
	expected := []string{"ID", "Seg_Organ_Dice", "Seg_Avg_Dice", "Seg_Organ_HD95", "Seg_Avg_HD95"}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected columns %v, got %v", expected, names)
	}
}

func TestRecordSampleRegistration(t *testing.T) {
	acc, _ := newAccumulator(t, Config{
		Classes:      []string{"Liver", "Kidney"},
		Registration: true,
		Displacement: true,
		Mode:         ModeTest,
	})

	// Truth: half liver, half kidney. Warped gets it right, rigid misses the
	// kidney entirely.
	truth := filled(t, []int{2, 4, 4}, 1)
	for i := 16; i < 32; i++ {
		truth.Voxels[i] = 2
	}
	rigid := filled(t, []int{2, 4, 4}, 1)

	field, err := volume.NewField([]int{3, 2, 4, 4}, make([]float64, 96))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 32; i++ {
		field.Components[i] = 2
	}

	row, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, truth, Registration{Warped: truth, Rigid: rigid, Field: &field})
	if err != nil {
		t.Fatal(err)
	}

	check := func(k Key, expected float64) {
		t.Helper()
		got, ok := row.Metric(k)
		if !ok {
			t.Fatalf("Missing column %s", k)
		}
		if math.Abs(got-expected) > 1e-12 {
			t.Errorf("%s: expected %g, got %g", k, expected, got)
		}
	}

	check(Key{FamilyRegistration, "Kidney", KindDice}, 1)
	check(Key{FamilyRegistration, "Liver", KindDisplacement}, 2)
	check(Key{FamilyRegistration, AverageClass, KindDisplacement}, 2)
	check(Key{FamilyRigid, "Kidney", KindDice}, 0)
	check(Key{FamilyRigid, "Liver", KindDice}, 2.0*16/(16+32))

	names, _ := row.Columns()
	if names[0] != "Reg_Liver_Dice" || names[len(names)-1] != "Rigid_Avg_HD95" {
		t.Errorf("Unexpected column order %v", names)
	}
	if len(names) != 5*3 {
		t.Errorf("Expected 15 columns, got %d", len(names))
	}
}

func TestRecordSampleRejectsDuplicateFamily(t *testing.T) {
	acc, _ := newAccumulator(t, segConfig(ModeTest))
	gt := filled(t, []int{2, 2, 2}, 1)

	_, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}, Segmentation{gt})
	if err == nil {
		t.Fatal("Expected an error")
	}
	if len(acc.Rows()) != 0 {
		t.Error("A rejected sample must not be recorded")
	}
}

func TestWriteThrough(t *testing.T) {
	acc, root := newAccumulator(t, segConfig(ModeTrain))
	gt := filled(t, []int{3, 3, 3}, 1)

	acc.BeginEpoch(7)
	for k := 1; k <= 4; k++ {
		if _, err := acc.RecordSample([]Field{{"ID", "x"}}, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
			t.Fatal(err)
		}

		if n := countDataRows(t, filepath.Join(root, "CSVs", "7_Results.csv")); n != k {
			t.Fatalf("After %d samples the run file has %d rows", k, n)
		}
	}

	// A new epoch starts an empty table in a new file
	acc.BeginEpoch(8)
	if _, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}
	if n := countDataRows(t, filepath.Join(root, "CSVs", "8_Results.csv")); n != 1 {
		t.Errorf("Expected 1 row for epoch 8, got %d", n)
	}
}

func TestNonTrainModeFileName(t *testing.T) {
	acc, root := newAccumulator(t, segConfig(ModeEval))
	gt := filled(t, []int{3, 3, 3}, 1)

	if _, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "CSVs", "eval_Results.csv")); err != nil {
		t.Error(err)
	}
}

func TestSummarizeRunTwice(t *testing.T) {
	acc, root := newAccumulator(t, segConfig(ModeTrain))
	acc.BeginEpoch(3)

	gt := filled(t, []int{2, 2, 2}, 1)
	empty := filled(t, []int{2, 2, 2}, 0)
	spacing := volume.Spacing{1, 1, 1}
	if _, err := acc.RecordSample(nil, spacing, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.RecordSample(nil, spacing, gt, Segmentation{empty}); err != nil {
		t.Fatal(err)
	}

	first, err := acc.SummarizeRun()
	if err != nil {
		t.Fatal(err)
	}
	second, err := acc.SummarizeRun()
	if err != nil {
		t.Fatal(err)
	}

	diceKey := Key{FamilySegmentation, "Organ", KindDice}
	if got := first.Values[diceKey].String(); got != "0.50 ± 0.71" {
		t.Errorf("Expected 0.50 ± 0.71, got %s", got)
	}
	for _, k := range first.Keys {
		if first.Values[k].String() != second.Values[k].String() {
			t.Errorf("%s differs between calls: %s vs %s", k, first.Values[k], second.Values[k])
		}
	}

	if !first.Epoch.Valid || first.Epoch.Int64 != 3 {
		t.Errorf("Expected epoch 3, got %+v", first.Epoch)
	}

	if acc.SummaryTable().Len() != 2 {
		t.Errorf("Expected 2 summary rows, got %d", acc.SummaryTable().Len())
	}
	if n := countDataRows(t, filepath.Join(root, "CSVs", "trainMean_Results.csv")); n != 2 {
		t.Errorf("Expected 2 persisted summary rows, got %d", n)
	}
}

func TestSummarizeRunWithoutEpochOutsideTraining(t *testing.T) {
	acc, _ := newAccumulator(t, segConfig(ModeTest))
	gt := filled(t, []int{2, 2, 2}, 1)
	if _, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}

	row, err := acc.SummarizeRun()
	if err != nil {
		t.Fatal(err)
	}

	names, _ := row.Columns()
	if row.Epoch.Valid || names[0] == "Epoch" {
		t.Errorf("Did not expect an Epoch column, got %v", names)
	}

	// One sample has no sample deviation
	if s := row.Values[Key{FamilySegmentation, "Organ", KindDice}]; s.Mean != 1 || !math.IsNaN(s.Std) {
		t.Errorf("Expected 1 ± NaN, got %v", s)
	}
}

func TestSummarizeRunMissingFamily(t *testing.T) {
	config := segConfig(ModeTest)
	config.Registration = true

	acc, _ := newAccumulator(t, config)
	gt := filled(t, []int{2, 2, 2}, 1)
	if _, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}

	if _, err := acc.SummarizeRun(); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("Expected ErrColumnNotFound, got %v", err)
	}
}

func TestLoadPriorSummary(t *testing.T) {
	root := t.TempDir()
	config := segConfig(ModeTest)
	config.Root = root

	acc, err := Open(config, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Nothing persisted yet is only a diagnostic
	if err := acc.LoadPriorSummary(); err != nil {
		t.Fatal(err)
	}

	gt := filled(t, []int{2, 2, 2}, 1)
	if _, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.SummarizeRun(); err != nil {
		t.Fatal(err)
	}

	// A later process picks up where this one left off
	next, err := Open(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := next.LoadPriorSummary(); err != nil {
		t.Fatal(err)
	}
	if next.SummaryTable().Len() != 1 {
		t.Fatalf("Expected 1 prior summary row, got %d", next.SummaryTable().Len())
	}

	if _, err := next.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}
	if _, err := next.SummarizeRun(); err != nil {
		t.Fatal(err)
	}
	if n := countDataRows(t, filepath.Join(root, "CSVs", "testMean_Results.csv")); n != 2 {
		t.Errorf("Expected 2 persisted summary rows, got %d", n)
	}
}

func TestResumeEpoch(t *testing.T) {
	root := t.TempDir()
	config := segConfig(ModeTrain)
	config.Classes = []string{"Left_Atrium"}
	config.Root = root

	acc, err := Open(config, nil)
	if err != nil {
		t.Fatal(err)
	}

	gt := filled(t, []int{2, 2, 2}, 1)
	acc.BeginEpoch(2)
	for _, id := range []string{"a", "b"} {
		if _, err := acc.RecordSample([]Field{{"ID", id}}, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
			t.Fatal(err)
		}
	}

	resumed, err := Open(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := resumed.ResumeEpoch(2); err != nil {
		t.Fatal(err)
	}

	if resumed.Epoch() != 2 {
		t.Errorf("Expected epoch 2, got %d", resumed.Epoch())
	}

	rows := resumed.Rows()
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[1].Info[0] != (Field{"ID", "b"}) {
		t.Errorf("Expected the ID field to survive, got %+v", rows[1].Info)
	}
	if v, ok := rows[0].Metric(Key{FamilySegmentation, "Left_Atrium", KindDice}); !ok || v != 1 {
		t.Errorf("Expected Dice 1, got %g (%v)", v, ok)
	}

	// Recording continues in the same file
	if _, err := resumed.RecordSample([]Field{{"ID", "c"}}, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}
	if n := countDataRows(t, filepath.Join(root, "CSVs", "2_Results.csv")); n != 3 {
		t.Errorf("Expected 3 rows, got %d", n)
	}

	// An epoch never written starts empty
	if err := resumed.ResumeEpoch(9); err != nil {
		t.Fatal(err)
	}
	if len(resumed.Rows()) != 0 {
		t.Error("Expected no rows for a fresh epoch")
	}
}

func TestMetricCells(t *testing.T) {
	for _, v := range []float64{0, 1, 0.8571428571428571, math.Inf(1)} {
		back, err := ParseMetric(FormatMetric(v))
		if err != nil {
			t.Fatal(err)
		}
		if back != v {
			t.Errorf("Expected %g, got %g", v, back)
		}
	}

	if FormatMetric(math.NaN()) != "" {
		t.Error("Expected NaN to be written as an empty cell")
	}
	if v, err := ParseMetric(""); err != nil || !math.IsNaN(v) {
		t.Errorf("Expected NaN, got %g (%v)", v, err)
	}
}

func TestParseSummary(t *testing.T) {
	s, err := ParseSummary("0.93 ± 0.04")
	if err != nil {
		t.Fatal(err)
	}
	if s.Mean != 0.93 || s.Std != 0.04 {
		t.Errorf("Got %+v", s)
	}

	for _, v := range []struct {
		in       Summary
		expected string
	}{
		{Summary{Mean: 1, Std: math.NaN()}, "1.00 ± nan"},
		{Summary{Mean: math.Inf(1), Std: math.NaN()}, "inf ± nan"},
		{Summary{Mean: math.NaN(), Std: math.NaN()}, "nan ± nan"},
		{Summary{Mean: 0.906, Std: 0.0449}, "0.91 ± 0.04"},
	} {
		if got := v.in.String(); got != v.expected {
			t.Errorf("Expected %q, got %q", v.expected, got)
		}
	}

	s, err = ParseSummary("inf ± nan")
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(s.Mean, 1) || !math.IsNaN(s.Std) {
		t.Errorf("Got %+v", s)
	}

	s, err = ParseSummary(Summary{Mean: 1, Std: math.NaN()}.String())
	if err != nil {
		t.Fatal(err)
	}
	if s.Mean != 1 || !math.IsNaN(s.Std) {
		t.Errorf("Got %+v", s)
	}
}

func TestRenderSummaryChart(t *testing.T) {
	acc, _ := newAccumulator(t, segConfig(ModeTrain))
	gt := filled(t, []int{2, 2, 2}, 1)

	var buf bytes.Buffer
	if err := acc.RenderSummaryChart(&buf); err == nil {
		t.Error("Expected an error with no summary rows")
	}

	for epoch := 0; epoch < 3; epoch++ {
		acc.BeginEpoch(epoch)
		if _, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
			t.Fatal(err)
		}
		if _, err := acc.SummarizeRun(); err != nil {
			t.Fatal(err)
		}
	}

	buf.Reset()
	if err := acc.RenderSummaryChart(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("Expected PNG output")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "eval.yaml")

	cfg := DefaultConfig()
	cfg.Classes = []string{"LV", "RV"}
	cfg.Mode = ModeTest
	cfg.Displacement = false

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}

	back, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Mode != ModeTest || back.Displacement || len(back.Classes) != 2 || back.Classes[1] != "RV" {
		t.Errorf("Got %+v", back)
	}

	missing, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if missing.Mode != ModeTrain || !missing.Registration {
		t.Errorf("Expected defaults, got %+v", missing)
	}
}

func TestConfigValidate(t *testing.T) {
	if _, err := New(Config{Root: ".", Mode: ModeTest}, nil); err == nil {
		t.Error("Expected an error without classes")
	}
}

type memoryStore map[string]*tablestore.Table

func (m memoryStore) WriteTable(name string, t *tablestore.Table) error {
	m[name] = t
	return nil
}

func (m memoryStore) ReadTable(name string) (*tablestore.Table, error) {
	t, exists := m[name]
	if !exists {
		return nil, tablestore.ErrNotFound
	}
	return t, nil
}

func TestNewWithCustomStore(t *testing.T) {
	store := memoryStore{}
	config := segConfig(ModeTest)
	config.Root = "unused"

	acc, err := New(config, store)
	if err != nil {
		t.Fatal(err)
	}

	gt := filled(t, []int{2, 2, 2}, 1)
	if _, err := acc.RecordSample(nil, volume.Spacing{1, 1, 1}, gt, Segmentation{gt}); err != nil {
		t.Fatal(err)
	}

	if tab, ok := store["test_Results.csv"]; !ok || tab.Len() != 1 {
		t.Errorf("Expected one row written to the store, got %v", store)
	}
}
