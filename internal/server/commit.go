package server

import (
	"fmt"

	"github.com/finboard/finboard/internal/catalog"
	"github.com/finboard/finboard/internal/model"
)

// Row rejection reasons.
const (
	ReasonMissingInvoice  = "missing invoice number"
	ReasonMissingAccount  = "missing account"
	ReasonMissingSupplier = "missing supplier"
	ReasonNegativeAmount  = "negative amount"
	ReasonOutOfRange      = "row index out of range"
)

// decision is the planned outcome for one selected row.
type decision struct {
	index      int
	row        model.ImportRow
	accountID  int
	supplierID int
	action     model.PlanAction
	reason     string
}

// decide validates the selected rows of a preview. Overrides win over
// name matching; without an override the server matches names itself.
// Callers hold s.mu.
func (s *Store) decide(previewID string, indices []int, opts model.CommitOptions, overrides []model.Override) ([]decision, error) {
	rows, err := s.previewRows(previewID)
	if err != nil {
		return nil, err
	}

	byInvoice := make(map[string]model.Override, len(overrides))
	for _, o := range overrides {
		byInvoice[o.InvoiceNumber] = o
	}
	accounts := catalog.NewAccountIndex(s.accounts, opts.PaymentTypeID)
	suppliers := catalog.NewSupplierIndex(s.suppliers)

	decisions := make([]decision, 0, len(indices))
	for _, idx := range indices {
		d := decision{index: idx, action: model.PlanReject}
		if idx < 0 || idx >= len(rows) {
			d.reason = ReasonOutOfRange
			decisions = append(decisions, d)
			continue
		}
		d.row = rows[idx]
		o := byInvoice[d.row.InvoiceNumber]

		d.accountID = o.AccountID
		if d.accountID != 0 && !accounts.Exists(d.accountID) {
			d.accountID = 0
		}
		if d.accountID == 0 {
			d.accountID, _ = accounts.Lookup(d.row.AccountName)
		}
		d.supplierID = o.SupplierID
		if d.supplierID != 0 && !suppliers.Exists(d.supplierID) {
			d.supplierID = 0
		}
		if d.supplierID == 0 {
			d.supplierID, _ = suppliers.Lookup(d.row.Supplier)
		}

		switch {
		case d.row.InvoiceNumber == "":
			d.reason = ReasonMissingInvoice
		case d.accountID == 0:
			d.reason = ReasonMissingAccount
		case d.supplierID == 0:
			d.reason = ReasonMissingSupplier
		case d.row.Amount.IsNegative() && !opts.AllowNegativeAdjustment:
			d.reason = ReasonNegativeAmount
		default:
			d.action = model.PlanCreate
			if _, exists := s.expenses[d.row.InvoiceNumber]; exists {
				d.action = model.PlanUpdate
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// Plan reports what Commit would do without applying anything.
func (s *Store) Plan(req model.PlanRequest) (model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := model.CommitOptions{
		PaymentTypeID:           req.Defaults.PaymentTypeID,
		BudgetItemID:            req.Defaults.BudgetItemID,
		UpdateTaxesOnUpsert:     req.Options.UpdateTaxesOnUpsert,
		AllowNegativeAdjustment: req.Options.AllowNegativeAdjustment,
	}
	decisions, err := s.decide(req.PreviewID, req.Indices, opts, nil)
	if err != nil {
		return model.Plan{}, err
	}
	plan := model.Plan{Rows: make([]model.PlanRow, 0, len(decisions))}
	for _, d := range decisions {
		switch d.action {
		case model.PlanCreate:
			plan.Creates++
		case model.PlanUpdate:
			plan.Updates++
		default:
			plan.Rejects++
		}
		plan.Rows = append(plan.Rows, model.PlanRow{
			Index:         d.index,
			InvoiceNumber: d.row.InvoiceNumber,
			Action:        d.action,
			Reason:        d.reason,
		})
	}
	return plan, nil
}

// Commit applies the valid rows of a batch and reports the others by
// invoice number. Expenses are upserted by invoice number; on update line
// taxes are only replaced when UpdateTaxesOnUpsert is set.
func (s *Store) Commit(req model.CommitRequest) (model.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	decisions, err := s.decide(req.PreviewID, req.Indices, req.Options, req.Overrides)
	if err != nil {
		return model.CommitResult{}, err
	}

	var res model.CommitResult
	now := s.now()
	for _, d := range decisions {
		if d.action == model.PlanReject {
			reason := d.reason
			if d.row.InvoiceNumber == "" {
				reason = fmt.Sprintf("%s (row %d)", reason, d.index)
			}
			res.Errors = append(res.Errors, model.RowError{InvoiceNumber: d.row.InvoiceNumber, Reason: reason})
			continue
		}

		row := d.row
		if prev, exists := s.expenses[row.InvoiceNumber]; exists {
			if !req.Options.UpdateTaxesOnUpsert {
				row.Lines = keepTaxes(row.Lines, prev.Row.Lines)
			}
			res.Updated++
		} else {
			res.Created++
		}
		s.expenses[row.InvoiceNumber] = Expense{
			InvoiceNumber: row.InvoiceNumber,
			AccountID:     d.accountID,
			SupplierID:    d.supplierID,
			BudgetItemID:  req.Options.BudgetItemID,
			Row:           row,
			CommittedAt:   now,
		}
	}
	return res, nil
}

// keepTaxes copies the tax of each previous line onto the matching new line.
func keepTaxes(next, prev []model.LineItem) []model.LineItem {
	out := append([]model.LineItem(nil), next...)
	for i := range out {
		if i < len(prev) {
			out[i].Tax = prev[i].Tax
		}
	}
	return out
}
