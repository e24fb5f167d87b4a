package main

import (
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/segeval"
	"github.com/carbocation/segeval/evaluation"
	"github.com/carbocation/segeval/overlay"
	"github.com/carbocation/segeval/volume"
)

func isNifti(path string) bool {
	return strings.HasSuffix(path, ".nii") || strings.HasSuffix(path, ".nii.gz")
}

// loadLabels reads a NIfTI label volume, or else treats path as a glob over
// ID-encoded mask images that are stacked in lexical order. Image stacks
// carry no spacing of their own, so they get fallback.
func loadLabels(path string, fallback volume.Spacing, client *storage.Client) (volume.Labels, volume.Spacing, error) {
	if isNifti(path) {
		return volume.LoadLabelsNifti(path, client)
	}

	matches, err := filepath.Glob(segeval.ExpandHome(path))
	if err != nil {
		return volume.Labels{}, fallback, err
	}
	if len(matches) == 0 {
		return volume.Labels{}, fallback, fmt.Errorf("%s: no NIfTI file and no mask images matched", path)
	}
	sort.Strings(matches)

	slices := make([]image.Image, 0, len(matches))
	for _, match := range matches {
		img, err := overlay.OpenImageFromLocalFileOrGoogleStorage(match, client)
		if err != nil {
			return volume.Labels{}, fallback, fmt.Errorf("%s: %w", match, err)
		}
		slices = append(slices, img)
	}

	labels, err := volume.LabelsFromImageStack(slices)
	if err != nil {
		return volume.Labels{}, fallback, fmt.Errorf("%s: %w", path, err)
	}

	return labels, fallback, nil
}

// loadPredictions builds the prediction variants named by row.
func loadPredictions(row ManifestRow, spacing volume.Spacing, client *storage.Client) ([]evaluation.Prediction, error) {
	var out []evaluation.Prediction

	if row.Registration != "" {
		if row.Rigid == "" {
			return nil, fmt.Errorf("%s: a registration needs its rigid baseline", row.SampleID)
		}

		warped, _, err := loadLabels(row.Registration, spacing, client)
		if err != nil {
			return nil, err
		}
		rigid, _, err := loadLabels(row.Rigid, spacing, client)
		if err != nil {
			return nil, err
		}

		reg := evaluation.Registration{Warped: warped, Rigid: rigid}
		if row.Field != "" {
			field, err := volume.LoadFieldNifti(row.Field, client)
			if err != nil {
				return nil, err
			}
			reg.Field = &field
		}

		out = append(out, reg)
	}

	if row.Segmentation != "" {
		seg, _, err := loadLabels(row.Segmentation, spacing, client)
		if err != nil {
			return nil, err
		}
		out = append(out, evaluation.Segmentation{Predicted: seg})
	}

	return out, nil
}

func parseSpacing(s string) (volume.Spacing, error) {
	var out volume.Spacing

	parts := strings.Split(s, ",")
	if len(parts) != len(out) {
		return out, fmt.Errorf("Spacing %q must have 3 comma-separated values", s)
	}

	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return out, fmt.Errorf("Spacing %q: %w", s, err)
		}
		out[i] = v
	}

	return out, nil
}
