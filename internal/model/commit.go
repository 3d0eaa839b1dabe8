package model

// Override pins the account and/or supplier of one invoice in a commit batch.
// A zero ID means "not set".
type Override struct {
	InvoiceNumber string `json:"invoice_number"`
	AccountID     int    `json:"account_id,omitempty"`
	SupplierID    int    `json:"supplier_id,omitempty"`
}

// Empty reports whether the override carries no id and can be dropped.
func (o Override) Empty() bool {
	return o.AccountID == 0 && o.SupplierID == 0
}

// CommitOptions are batch defaults applied server-side to rows without explicit overrides.
type CommitOptions struct {
	PaymentTypeID           int  `json:"payment_type_id,omitempty"`
	BudgetItemID            int  `json:"budget_item_id,omitempty"`
	UpdateTaxesOnUpsert     bool `json:"update_taxes_on_upsert"`
	AllowNegativeAdjustment bool `json:"allow_negative_adjustment"`
}

// CommitRequest is the body of an import-commit call.
type CommitRequest struct {
	PreviewID string        `json:"preview_id"`
	Indices   []int         `json:"indices"`
	Options   CommitOptions `json:"options"`
	Overrides []Override    `json:"overrides"`
}

// RowError reports why one invoice of a batch was not applied.
type RowError struct {
	InvoiceNumber string `json:"invoice_number"`
	Reason        string `json:"reason"`
}

// CommitResult is the outcome of an import-commit call.
// A non-empty Errors leaves the batch partially applied.
type CommitResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Errors  []RowError `json:"errors,omitempty"`
}

// Succeeded reports whether every row of the batch was applied.
func (r CommitResult) Succeeded() bool {
	return len(r.Errors) == 0
}

// FailedInvoices returns the set of invoice numbers reported in Errors.
func (r CommitResult) FailedInvoices() map[string]bool {
	failed := make(map[string]bool, len(r.Errors))
	for _, e := range r.Errors {
		failed[e.InvoiceNumber] = true
	}
	return failed
}

// PlanDefaults are the partition defaults sent with an import-plan call.
type PlanDefaults struct {
	PaymentTypeID int `json:"payment_type_id,omitempty"`
	BudgetItemID  int `json:"budget_item_id,omitempty"`
}

// PlanOptions are the upsert flags sent with an import-plan call.
type PlanOptions struct {
	UpdateTaxesOnUpsert     bool `json:"update_taxes_on_upsert"`
	AllowNegativeAdjustment bool `json:"allow_negative_adjustment"`
}

// PlanRequest is the body of an import-plan call.
type PlanRequest struct {
	PreviewID string       `json:"preview_id"`
	Indices   []int        `json:"indices"`
	Defaults  PlanDefaults `json:"defaults"`
	Options   PlanOptions  `json:"options"`
}

// PlanAction is what a commit would do with one row.
type PlanAction string

const (
	PlanCreate PlanAction = "create"
	PlanUpdate PlanAction = "update"
	PlanReject PlanAction = "reject"
)

// PlanRow describes the planned outcome for one selected row.
type PlanRow struct {
	Index         int        `json:"index"`
	InvoiceNumber string     `json:"invoice_number"`
	Action        PlanAction `json:"action"`
	Reason        string     `json:"reason,omitempty"`
}

// Plan is the dry-run result of an import-plan call.
type Plan struct {
	Creates int       `json:"creates"`
	Updates int       `json:"updates"`
	Rejects int       `json:"rejects"`
	Rows    []PlanRow `json:"rows"`
}

// SplitOptions converts commit options into the defaults/options pair used by import-plan.
func (o CommitOptions) SplitOptions() (PlanDefaults, PlanOptions) {
	return PlanDefaults{PaymentTypeID: o.PaymentTypeID, BudgetItemID: o.BudgetItemID},
		PlanOptions{UpdateTaxesOnUpsert: o.UpdateTaxesOnUpsert, AllowNegativeAdjustment: o.AllowNegativeAdjustment}
}
