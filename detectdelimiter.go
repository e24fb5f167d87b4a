package segeval

import (
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file. Falls back to a comma.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 && len(delimiters[0]) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// SniffDelimiter reads all of r and returns its contents along with the
// detected delimiter, so the caller can parse the same bytes afterwards.
func SniffDelimiter(r io.Reader) ([]byte, rune, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, ',', err
	}

	return contents, DetermineDelimiter(bytes.NewReader(contents)), nil
}
