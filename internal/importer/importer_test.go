package importer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `Invoice Number,Invoice Name,Supplier,Amount,Total Paid,Payment Date,Account,Line Description,Qty,Unit Price,Tax,Net Amount
F-100,Office rent March,ACME A.Ş.,1200.00,600.00,2025-03-05,Office Rent,Rent,1,1000,200,1000
F-101,Travel,acme a.ş.,,,,,Flight,2,150,0,
F-101,,,,,,,Hotel,1,90,10,90
,Misc,Initech,"1,250.50",,05.03.2025,,,,,,
`

func TestCSVParser_Parse(t *testing.T) {
	p := &CSVParser{}
	rows, err := p.Parse(strings.NewReader(sampleCSV), "")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, "F-100", first.InvoiceNumber)
	assert.Equal(t, "Office rent March", first.InvoiceName)
	assert.Equal(t, "ACME A.Ş.", first.Supplier)
	assert.Equal(t, "1200.00", first.Amount.StringFixed(2))
	assert.Equal(t, "600.00", first.Outstanding().StringFixed(2))
	assert.Equal(t, "2025-03-05", first.LastPaymentDate)
	assert.Equal(t, "Office Rent", first.AccountName)
	require.Len(t, first.Lines, 1)
	assert.Equal(t, "Rent", first.Lines[0].Description)

	// Lines with the same invoice number are grouped; amount falls back to the line totals.
	second := rows[1]
	assert.Equal(t, "F-101", second.InvoiceNumber)
	assert.Empty(t, second.AccountName)
	require.Len(t, second.Lines, 2)
	assert.Equal(t, "300", second.Lines[0].NetAmount.String(), "net derived from qty * unit price")
	assert.Equal(t, "400.00", second.Amount.StringFixed(2))

	third := rows[2]
	assert.Empty(t, third.InvoiceNumber)
	assert.Equal(t, "1250.50", third.Amount.StringFixed(2))
	assert.Equal(t, "2025-03-05", third.LastPaymentDate)
	assert.Empty(t, third.Lines)
}

func TestCSVParser_HeaderAliasesAndBOM(t *testing.T) {
	data := "\ufeffFATURA NO,Tedarikçi,Total,Hesap\nA-1,Globex,10,Rent\n\n"
	rows, err := (&CSVParser{}).Parse(strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A-1", rows[0].InvoiceNumber)
	assert.Equal(t, "Globex", rows[0].Supplier)
	assert.Equal(t, "Rent", rows[0].AccountName)
}

func TestCSVParser_MissingColumns(t *testing.T) {
	_, err := (&CSVParser{}).Parse(strings.NewReader("Supplier,Amount\nx,1\n"), "")
	assert.ErrorContains(t, err, "missing invoice number column")

	_, err = (&CSVParser{}).Parse(strings.NewReader("Invoice Number,Supplier\nx,y\n"), "")
	assert.ErrorContains(t, err, "missing amount column")
}

func TestCSVParser_BadValues(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"amount", "Invoice Number,Amount\nF-1,abc\n", "parsing amount"},
		{"date", "Invoice Number,Amount,Payment Date\nF-1,1,yesterday\n", "parsing date"},
		{"quantity", "Invoice Number,Amount,Qty\nF-1,1,many\n", "parsing quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&CSVParser{}).Parse(strings.NewReader(tt.data), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "row 2")
		})
	}
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	rows, err := (&CSVParser{}).Parse(strings.NewReader("Invoice Number,Amount\n"), "")
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func xlsxFixture(t *testing.T, sheet string, records [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := rec
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestXLSXParser_Parse(t *testing.T) {
	r := xlsxFixture(t, "Sheet1", [][]any{
		{"Invoice Number", "Supplier", "Amount", "Account"},
		{"F-1", "Globex", "99.90", "Travel"},
		{"F-2", "Initech", 12, ""},
	})

	rows, err := (&XLSXParser{}).Parse(r, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Globex", rows[0].Supplier)
	assert.Equal(t, "99.90", rows[0].Amount.StringFixed(2))
	assert.Equal(t, "12", rows[1].Amount.String())
	assert.Empty(t, rows[1].AccountName)
}

func TestXLSXParser_NamedSheet(t *testing.T) {
	r := xlsxFixture(t, "Expenses", [][]any{
		{"Invoice Number", "Amount"},
		{"E-1", "5"},
	})

	rows, err := (&XLSXParser{}).Parse(r, "Expenses")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "E-1", rows[0].InvoiceNumber)

	_, err = r.Seek(0, 0)
	require.NoError(t, err)
	_, err = (&XLSXParser{}).Parse(r, "Nope")
	assert.ErrorContains(t, err, `sheet "Nope" not found`)
}

func TestXLSXParser_NotAWorkbook(t *testing.T) {
	_, err := (&XLSXParser{}).Parse(strings.NewReader("plain text"), "")
	assert.ErrorContains(t, err, "opening workbook")
}

func TestXLSParser_NotAWorkbook(t *testing.T) {
	_, err := (&XLSParser{}).Parse(strings.NewReader("plain text"), "")
	assert.Error(t, err)
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"expenses.csv", true},
		{"Expenses.XLSX", true},
		{"legacy.xls", true},
		{"scan.pdf", true},
		{"notes.txt", false},
		{"archive.zip", false},
		{"noext", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.name)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnsupportedFile)
			}
		})
	}
}

func TestRegistry_Parse(t *testing.T) {
	r := DefaultRegistry()

	rows, err := r.Parse("a.csv", strings.NewReader("Invoice Number,Amount\nF-1,3\n"), "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = r.Parse("scan.pdf", strings.NewReader("%PDF-1.4"), "")
	assert.True(t, errors.Is(err, ErrUnsupportedFile), "pdf has no parser")

	_, err = r.Parse("a.txt", strings.NewReader(""), "")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&CSVParser{})
	assert.NotNil(t, r.Get("CSV"))
	assert.Panics(t, func() { r.Register(&CSVParser{}) })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, f := range []string{"csv", "xlsx", "xls"} {
		assert.NotNil(t, r.Get(f), f)
	}
	assert.Nil(t, r.Get("pdf"))
}

func TestScan_FindsUploadableFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xlsx", "a.csv", "c.pdf", "other.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644))
	}

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.csv", files[0].Name)
	assert.Equal(t, "b.xlsx", files[1].Name)
	assert.Equal(t, int64(4), files[0].Size)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "import"))
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(dir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "processed", "bank.csv"))
	assert.NoError(t, err)
}

func TestMarkProcessed_MissingFile(t *testing.T) {
	err := MarkProcessed(t.TempDir(), "gone.csv")
	assert.ErrorContains(t, err, "moving gone.csv")
}
