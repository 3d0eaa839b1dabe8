package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/finboard/finboard/internal/model"
)

// CSVParser parses comma-separated expense exports with a header row.
type CSVParser struct{}

// Format returns the parser name.
func (p *CSVParser) Format() string { return "csv" }

// Parse reads a CSV document. The sheet argument is ignored.
func (p *CSVParser) Parse(r io.ReadSeeker, _ string) ([]model.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return buildRows(records)
}
