// Package tablestore persists small tables of text cells as comma-separated
// files with a header row, on local disk or in Google Storage.
package tablestore

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/carbocation/pfx"
)

// Table is an append-only sequence of rows over a growing set of columns.
// Columns appear in the order they were first seen; a row that lacks a
// column reads back as an empty cell.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

func New() *Table {
	return &Table{index: make(map[string]int)}
}

// Columns returns the header, in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len is the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether any appended row introduced name.
func (t *Table) HasColumn(name string) bool {
	_, exists := t.index[name]
	return exists
}

// Append adds one row. columns and values are positionally aligned; columns
// not yet in the table are added to the end of the header.
func (t *Table) Append(columns, values []string) error {
	if len(columns) != len(values) {
		return fmt.Errorf("Row has %d columns but %d values", len(columns), len(values))
	}

	row := make([]string, len(t.columns), len(t.columns)+len(columns))
	for i, col := range columns {
		pos, exists := t.index[col]
		if !exists {
			pos = len(t.columns)
			t.index[col] = pos
			t.columns = append(t.columns, col)
			row = append(row, "")
		}
		row[pos] = values[i]
	}

	t.rows = append(t.rows, row)

	return nil
}

// Value returns the cell at row i under column. The boolean is false when the
// column does not exist.
func (t *Table) Value(i int, column string) (string, bool) {
	pos, exists := t.index[column]
	if !exists {
		return "", false
	}

	if row := t.rows[i]; pos < len(row) {
		return row[pos], true
	}

	return "", true
}

// WriteCSV emits the header and every row, padding short rows.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.columns); err != nil {
		return pfx.Err(err)
	}

	record := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = row[i]
			}
		}
		if err := cw.Write(record); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()

	return pfx.Err(cw.Error())
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}

	t := New()
	if len(records) == 0 {
		return t, nil
	}

	header := records[0]
	for _, record := range records[1:] {
		if len(record) > len(header) {
			return nil, fmt.Errorf("Row has %d fields but the header has %d", len(record), len(header))
		}
		if err := t.Append(header[:len(record)], record); err != nil {
			return nil, err
		}
	}

	// A header-only file still defines its columns
	for _, col := range header {
		if _, exists := t.index[col]; !exists {
			t.index[col] = len(t.columns)
			t.columns = append(t.columns, col)
		}
	}

	return t, nil
}
