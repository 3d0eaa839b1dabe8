package importer

import (
	"fmt"
	"io"

	"github.com/extrame/xls"

	"github.com/finboard/finboard/internal/model"
)

// XLSParser parses legacy BIFF (.xls) workbooks.
type XLSParser struct{}

// Format returns the parser name.
func (p *XLSParser) Format() string { return "xls" }

// Parse reads the named sheet, or the first sheet when sheet is empty.
func (p *XLSParser) Parse(r io.ReadSeeker, sheet string) ([]model.ImportRow, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}

	var ws *xls.WorkSheet
	for i := 0; i < wb.NumSheets(); i++ {
		s := wb.GetSheet(i)
		if s == nil {
			continue
		}
		if sheet == "" || s.Name == sheet {
			ws = s
			break
		}
	}
	if ws == nil {
		if sheet == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		return nil, fmt.Errorf("sheet %q not found in workbook", sheet)
	}

	var records [][]string
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		rec := make([]string, row.LastCol())
		for j := range rec {
			rec[j] = row.Col(j)
		}
		records = append(records, rec)
	}
	return buildRows(records)
}
