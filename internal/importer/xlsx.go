package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/finboard/finboard/internal/model"
)

// XLSXParser parses Office Open XML workbooks.
type XLSXParser struct{}

// Format returns the parser name.
func (p *XLSXParser) Format() string { return "xlsx" }

// Parse reads the named sheet, or the first sheet when sheet is empty.
func (p *XLSXParser) Parse(r io.ReadSeeker, sheet string) ([]model.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found in workbook", sheet)
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return buildRows(records)
}
