package model

// Account is a ledger account that expenses are booked against.
// Accounts are partitioned by payment type.
type Account struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	PaymentTypeID int    `json:"payment_type_id"` // 0 = unpartitioned
}

// Supplier is the counterparty an expense was paid to.
type Supplier struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NewAccount is the body of a create-account call.
type NewAccount struct {
	Name          string `json:"name"`
	PaymentTypeID int    `json:"payment_type_id"`
}

// NewSupplier is the body of a create-supplier call.
type NewSupplier struct {
	Name string `json:"name"`
}
