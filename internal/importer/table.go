package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/normalize"
)

// Logical columns of an expense sheet.
const (
	colInvoiceNumber = "invoice_number"
	colInvoiceName   = "invoice_name"
	colDescription   = "description"
	colSupplier      = "supplier"
	colAmount        = "amount"
	colTotalPaid     = "total_paid"
	colPaymentDate   = "last_payment_date"
	colAccount       = "account_name"
	colLineDesc      = "line_description"
	colQuantity      = "quantity"
	colUnitPrice     = "unit_price"
	colTax           = "tax"
	colNetAmount     = "net_amount"
)

// headerAliases maps normalized header text to a logical column.
var headerAliases = map[string]string{
	"invoice number": colInvoiceNumber,
	"invoice no":     colInvoiceNumber,
	"invoice #":      colInvoiceNumber,
	"fatura no":      colInvoiceNumber,

	"invoice name": colInvoiceName,
	"invoice":      colInvoiceName,
	"description":  colDescription,

	"supplier":  colSupplier,
	"vendor":    colSupplier,
	"tedarikçi": colSupplier,

	"amount":     colAmount,
	"total":      colAmount,
	"total paid": colTotalPaid,
	"paid":       colTotalPaid,

	"last payment date": colPaymentDate,
	"payment date":      colPaymentDate,

	"account name": colAccount,
	"account":      colAccount,
	"hesap":        colAccount,

	"line description": colLineDesc,
	"item":             colLineDesc,
	"quantity":         colQuantity,
	"qty":              colQuantity,
	"unit price":       colUnitPrice,

	"tax":        colTax,
	"vat":        colTax,
	"kdv":        colTax,
	"net amount": colNetAmount,
	"net":        colNetAmount,
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2006/01/02",
	"01-02-06",
	time.RFC3339,
}

const dateFormat = "2006-01-02"

// headerKey canonicalizes a header cell: "Invoice_Number " -> "invoice number".
func headerKey(cell string) string {
	return normalize.Key(strings.ReplaceAll(cell, "_", " "))
}

// columnMap resolves header cells to logical column positions.
// Unknown headers are ignored; the first occurrence of a column wins.
func columnMap(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, cell := range header {
		name, ok := headerAliases[headerKey(cell)]
		if !ok {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	if _, ok := cols[colInvoiceNumber]; !ok {
		return nil, errors.New("missing invoice number column")
	}
	_, hasAmount := cols[colAmount]
	_, hasNet := cols[colNetAmount]
	if !hasAmount && !hasNet {
		return nil, errors.New("missing amount column")
	}
	return cols, nil
}

// buildRows turns a header plus data records into ImportRows. Consecutive or
// scattered records sharing an invoice number become one row with several
// lines, in order of first appearance. Records without an invoice number are
// kept as separate rows. Blank records are skipped.
func buildRows(records [][]string) ([]model.ImportRow, error) {
	records = trimLeadingBlank(records)
	if len(records) == 0 {
		return nil, nil
	}
	cols, err := columnMap(records[0])
	if err != nil {
		return nil, err
	}

	var rows []model.ImportRow
	byInvoice := make(map[string]int)
	amountSet := make(map[int]bool)

	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx])
		}
		lineNo := i + 2

		line, hasLine, err := parseLine(cell)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", lineNo, err)
		}
		amount, err := parseMoney(cell(colAmount))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount: %w", lineNo, err)
		}
		paid, err := parseMoney(cell(colTotalPaid))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing total paid: %w", lineNo, err)
		}
		date, err := parseDate(cell(colPaymentDate))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", lineNo, err)
		}

		inv := cell(colInvoiceNumber)
		pos, seen := byInvoice[inv]
		if !seen || inv == "" {
			pos = len(rows)
			rows = append(rows, model.ImportRow{InvoiceNumber: inv})
			if inv != "" {
				byInvoice[inv] = pos
			}
		}
		row := &rows[pos]
		fill(&row.InvoiceName, cell(colInvoiceName))
		fill(&row.Description, cell(colDescription))
		fill(&row.Supplier, cell(colSupplier))
		fill(&row.AccountName, cell(colAccount))
		fill(&row.LastPaymentDate, date)
		if cell(colAmount) != "" && !amountSet[pos] {
			row.Amount = amount
			amountSet[pos] = true
		}
		if cell(colTotalPaid) != "" {
			row.TotalPaid = paid
		}
		if hasLine {
			row.Lines = append(row.Lines, line)
		}
	}

	for pos := range rows {
		if amountSet[pos] {
			continue
		}
		total := decimal.Zero
		for _, l := range rows[pos].Lines {
			total = total.Add(l.NetAmount).Add(l.Tax)
		}
		rows[pos].Amount = total
	}
	return rows, nil
}

func parseLine(cell func(string) string) (model.LineItem, bool, error) {
	desc := cell(colLineDesc)
	var line model.LineItem
	fields := []struct {
		col string
		dst *decimal.Decimal
	}{
		{colQuantity, &line.Quantity},
		{colUnitPrice, &line.UnitPrice},
		{colTax, &line.Tax},
		{colNetAmount, &line.NetAmount},
	}

	present := desc != ""
	for _, f := range fields {
		raw := cell(f.col)
		if raw == "" {
			continue
		}
		d, err := parseMoney(raw)
		if err != nil {
			return model.LineItem{}, false, fmt.Errorf("parsing %s: %w", f.col, err)
		}
		*f.dst = d
		present = true
	}
	if !present {
		return model.LineItem{}, false, nil
	}
	line.Description = desc
	if line.NetAmount.IsZero() && !line.Quantity.IsZero() {
		line.NetAmount = line.Quantity.Mul(line.UnitPrice)
	}
	return line, true, nil
}

// parseMoney accepts "1234.50", "1,234.50" and "1234,50". Blank is zero.
func parseMoney(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	return d, nil
}

// parseDate returns s as YYYY-MM-DD. Blank stays blank.
func parseDate(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateFormat), nil
		}
	}
	return "", fmt.Errorf("parsing date %q", s)
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// trimLeadingBlank drops empty records above the header.
func trimLeadingBlank(records [][]string) [][]string {
	for len(records) > 0 && blank(records[0]) {
		records = records[1:]
	}
	return records
}
