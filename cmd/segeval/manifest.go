package main

import (
	"encoding/csv"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/segeval"
	"github.com/gocarina/gocsv"
)

// ManifestRow names the files for one sample. Only sample_id and truth are
// required; an empty path means that prediction is not scored.
type ManifestRow struct {
	SampleID     string `csv:"sample_id"`
	Truth        string `csv:"truth"`
	Registration string `csv:"registration"`
	Rigid        string `csv:"rigid"`
	Segmentation string `csv:"segmentation"`
	Field        string `csv:"field"`
}

// Paths lists every file the row refers to.
func (m ManifestRow) Paths() []string {
	return []string{m.Truth, m.Registration, m.Rigid, m.Segmentation, m.Field}
}

// ReadManifest parses a comma- or tab-delimited manifest, locally or from
// Google Storage, optionally compressed.
func ReadManifest(path string, client *storage.Client) ([]ManifestRow, error) {
	f, err := segeval.MaybeOpenFromGoogleStorage(path, client)
	if err != nil {
		return nil, err
	}

	r, err := segeval.MaybeDecompress(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	defer r.Close()

	return parseManifest(r)
}

func parseManifest(r io.Reader) ([]ManifestRow, error) {
	contents, delim, err := segeval.SniffDelimiter(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	records := make([]*ManifestRow, 0)

	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = delim
		r.LazyQuotes = true
		return r
	})

	if err := gocsv.UnmarshalBytes(contents, &records); err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]ManifestRow, 0, len(records))
	for i, record := range records {
		if record.SampleID == "" || record.Truth == "" {
			return nil, pfx.Err(fmt.Errorf("manifest row %d needs both sample_id and truth", i+1))
		}
		out = append(out, *record)
	}

	return out, nil
}
