package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/segeval"
	"github.com/carbocation/segeval/compileinfo"
	_ "github.com/carbocation/segeval/compileinfoprint"
	"github.com/carbocation/segeval/evaluation"
	"github.com/carbocation/segeval/overlay"
	"github.com/carbocation/segeval/volume"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"
)

const sampleIDColumn = "sample_id"

func init() {
	flag.Usage = func() {
		flag.PrintDefaults()

		log.Println("Example config file layout:")
		if bts, err := yaml.Marshal(evaluation.DefaultConfig()); err == nil {
			log.Println(string(bts))
		}

		log.Println("Example JSONConfig label file layout:")
		bts, err := json.MarshalIndent(overlay.JSONConfig{Labels: overlay.LabelMap{
			"Background": overlay.Label{Color: "#000000", ID: 0},
			"Organ":      overlay.Label{Color: "#010101", ID: 1},
		}}, "", "  ")
		if err == nil {
			log.Println(string(bts))
		}
	}
}

func main() {
	fmt.Fprintf(os.Stderr, "%q\n", os.Args)

	var configPath, labelPath, manifestPath, chartPath, spacingString, credentials string
	var epoch int
	var resume, version bool

	flag.StringVar(&configPath, "config", "", "Path to a YAML config (sv_dir, class_list, calc_reg, calc_seg, calc_disp, mode). Missing values take defaults.")
	flag.StringVar(&labelPath, "labels", "", "(Optional) JSONConfig file from the overlay package. Used for class names when the config has no class_list.")
	flag.StringVar(&manifestPath, "manifest", "", "Comma- or tab-delimited file with columns sample_id, truth, and any of registration, rigid, segmentation, field")
	flag.IntVar(&epoch, "epoch", 0, "Epoch that these samples belong to. Only changes the output file name in train mode.")
	flag.BoolVar(&resume, "resume", false, "(Optional) Reload the rows already written for this epoch and skip those sample_ids")
	flag.StringVar(&chartPath, "chart", "", "(Optional) Write a PNG of Avg Dice across all summarized runs to this path")
	flag.StringVar(&spacingString, "spacing", "1,1,1", "Voxel spacing used for mask image stacks, which carry none of their own")
	flag.StringVar(&credentials, "credentials", "", "(Optional) Service account JSON for Google Storage. Defaults to application default credentials.")
	flag.BoolVar(&version, "version", false, "Print the build commit and exit")
	flag.Parse()

	if version {
		fmt.Println(compileinfo.Get().Commit)
		return
	}

	if manifestPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	spacing, err := parseSpacing(spacingString)
	if err != nil {
		log.Fatalln(err)
	}

	cfg := evaluation.DefaultConfig()
	if configPath != "" {
		cfg, err = evaluation.LoadConfig(segeval.ExpandHome(configPath))
		if err != nil {
			log.Fatalln(err)
		}
	}
	if labelPath == "" {
		labelPath = cfg.LabelConfig
	}

	// Initialize the Google Storage client only if we're pointing to Google
	// Storage paths. The manifest itself may name more of them.
	var client *storage.Client
	connect := func(paths ...string) {
		if client != nil || !anyGoogleStoragePath(paths...) {
			return
		}

		var opts []option.ClientOption
		if credentials != "" {
			opts = append(opts, option.WithCredentialsFile(segeval.ExpandHome(credentials)))
		}

		client, err = storage.NewClient(context.Background(), opts...)
		if err != nil {
			log.Fatalln(err)
		}
	}
	connect(cfg.Root, manifestPath, labelPath, chartPath)

	if len(cfg.Classes) == 0 && labelPath != "" {
		labels, err := overlay.ParseJSONConfigFromPath(labelPath, client)
		if err != nil {
			log.Fatalln(err)
		}
		if cfg.Classes, err = labels.Labels.ClassNames(); err != nil {
			log.Fatalln(err)
		}
		for _, label := range labels.Labels.Sorted() {
			log.Printf("Label %d: %s (%s)\n", label.ID, label.Label, label.Color)
		}
	}

	manifest, err := ReadManifest(manifestPath, client)
	if err != nil {
		log.Fatalln(err)
	}
	for _, row := range manifest {
		connect(row.Paths()...)
	}

	acc, err := evaluation.Open(cfg, client)
	if err != nil {
		log.Fatalln(err)
	}

	if err := run(acc, manifest, epoch, resume, spacing, client); err != nil {
		log.Fatalln(err)
	}

	if chartPath == "" {
		return
	}

	if err := writeChart(acc, chartPath, client); err != nil {
		log.Fatalln(err)
	}
}

// run scores every sample in the manifest, then summarizes the run and
// prints the summary row to stdout.
func run(acc *evaluation.Accumulator, manifest []ManifestRow, epoch int, resume bool, fallback volume.Spacing, client *storage.Client) error {
	log.Printf("Scoring classes %v\n", acc.Classes())

	if err := acc.LoadPriorSummary(); err != nil {
		return err
	}

	done := make(map[string]struct{})
	if resume {
		if err := acc.ResumeEpoch(epoch); err != nil {
			return err
		}
		for _, row := range acc.Rows() {
			for _, field := range row.Info {
				if field.Name == sampleIDColumn {
					done[field.Value] = struct{}{}
				}
			}
		}
		log.Printf("Resuming epoch %d with %d samples already scored\n", acc.Epoch(), len(done))
	} else {
		acc.BeginEpoch(epoch)
	}

	for i, sample := range manifest {
		if _, exists := done[sample.SampleID]; exists {
			continue
		}

		truth, spacing, err := loadLabels(sample.Truth, fallback, client)
		if err != nil {
			return err
		}

		predictions, err := loadPredictions(sample, spacing, client)
		if err != nil {
			return err
		}
		if len(predictions) == 0 {
			log.Printf("%s: no predictions listed, skipping\n", sample.SampleID)
			continue
		}

		info := []evaluation.Field{{Name: sampleIDColumn, Value: sample.SampleID}}
		if _, err := acc.RecordSample(info, spacing, truth, predictions...); err != nil {
			return fmt.Errorf("%s: %w", sample.SampleID, err)
		}

		if (i+1)%100 == 0 {
			log.Printf("Scored %d samples\n", i+1)
		}
	}

	summary, err := acc.SummarizeRun()
	if err != nil {
		return err
	}

	names, values := summary.Columns()
	fmt.Println(strings.Join(names, "\t"))
	fmt.Println(strings.Join(values, "\t"))

	printAvgDiceHistogram(acc)

	return nil
}

// printAvgDiceHistogram shows, on stderr, how the per-sample Avg Dice of
// each recorded family is distributed across the run.
func printAvgDiceHistogram(acc *evaluation.Accumulator) {
	for _, family := range []evaluation.Family{evaluation.FamilyRegistration, evaluation.FamilyRigid, evaluation.FamilySegmentation} {
		key := evaluation.Key{Family: family, Class: evaluation.AverageClass, Kind: evaluation.KindDice}

		dice := avgDice(acc.Rows(), key)
		if len(dice) == 0 {
			continue
		}

		// The number of buckets is arbitrary
		hist := histogram.Hist(25, dice)

		log.Printf("Distribution of %s across %d samples:\n", key, len(dice))
		if err := histogram.Fprint(os.Stderr, hist, histogram.Linear(5)); err != nil {
			log.Println(err)
		}
	}
}

func avgDice(rows []evaluation.MetricRow, key evaluation.Key) []float64 {
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		v, exists := row.Metric(key)
		if !exists || math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}

	return out
}

func writeChart(acc *evaluation.Accumulator, chartPath string, client *storage.Client) error {
	w, err := segeval.MaybeCreateInGoogleStorage(chartPath, client)
	if err != nil {
		return err
	}

	if err := acc.RenderSummaryChart(w); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

func anyGoogleStoragePath(paths ...string) bool {
	for _, path := range paths {
		if segeval.IsGoogleStoragePath(path) {
			return true
		}
	}

	return false
}
