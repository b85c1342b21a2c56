// Package export renders tabular datasets (course rosters) as CSV or PDF.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
)

// ErrNoColumns is returned for a dataset without headers.
var ErrNoColumns = errors.New("export: dataset has no columns")

// Dataset is a titled table. Every row must have one cell per header. Title
// and Notes are rendered only by formats with room for a heading.
type Dataset struct {
	Title   string
	Notes   []string
	Headers []string
	Rows    [][]string
}

// Validate checks the table shape.
func (d Dataset) Validate() error {
	if len(d.Headers) == 0 {
		return ErrNoColumns
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("export: row %d has %d cells, want %d", i+1, len(row), len(d.Headers))
		}
	}
	return nil
}

// CSVExporter writes the header row followed by the data rows.
type CSVExporter struct {
	// Comma overrides the field separator; zero means ','.
	Comma rune
}

// NewCSVExporter builds a comma-separated exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType is the MIME type of the rendered document.
func (e *CSVExporter) ContentType() string {
	return "text/csv; charset=utf-8"
}

// Render encodes the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if e.Comma != 0 {
		w.Comma = e.Comma
	}
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(data.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
