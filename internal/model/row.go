package model

import "github.com/shopspring/decimal"

// LineItem is one line of an imported invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Tax         decimal.Decimal `json:"tax"`
	NetAmount   decimal.Decimal `json:"net_amount"`
}

// ImportRow is one parsed record of an uploaded document awaiting import.
// Within a wizard run a row is identified by its global index, not by any field.
type ImportRow struct {
	InvoiceNumber   string          `json:"invoice_number"`
	InvoiceName     string          `json:"invoice_name"`
	Description     string          `json:"description,omitempty"`
	Supplier        string          `json:"supplier"`
	Amount          decimal.Decimal `json:"amount"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	LastPaymentDate string          `json:"last_payment_date,omitempty"` // YYYY-MM-DD
	AccountName     string          `json:"account_name,omitempty"`      // empty = unmatched
	Lines           []LineItem      `json:"lines,omitempty"`
}

// Outstanding returns the unpaid part of the invoice.
func (r ImportRow) Outstanding() decimal.Decimal {
	return r.Amount.Sub(r.TotalPaid)
}

// PreviewHandle is returned by an upload and scopes every later preview and commit call.
type PreviewHandle struct {
	PreviewID string `json:"preview_id"`
	Count     int    `json:"count"`
}

// PreviewPage is one page of preview rows.
type PreviewPage struct {
	Items []ImportRow `json:"items"`
	Total int         `json:"total"`
}
