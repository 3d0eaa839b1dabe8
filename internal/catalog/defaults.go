package catalog

import "github.com/finboard/finboard/internal/model"

// Payment-type partitions used by the default catalog.
const (
	PaymentTypeBankTransfer = 1
	PaymentTypeCreditCard   = 2
	PaymentTypeCash         = 3
)

// DefaultAccounts returns the starter account catalog for a new backend.
func DefaultAccounts() []model.Account {
	return []model.Account{
		{ID: 1, Name: "Office Rent", PaymentTypeID: PaymentTypeBankTransfer},
		{ID: 2, Name: "Utilities", PaymentTypeID: PaymentTypeBankTransfer},
		{ID: 3, Name: "Payroll", PaymentTypeID: PaymentTypeBankTransfer},
		{ID: 4, Name: "Software & SaaS", PaymentTypeID: PaymentTypeCreditCard},
		{ID: 5, Name: "Travel", PaymentTypeID: PaymentTypeCreditCard},
		{ID: 6, Name: "Office Supplies", PaymentTypeID: PaymentTypeCash},
		{ID: 7, Name: "Utilities", PaymentTypeID: PaymentTypeCreditCard},
	}
}

// DefaultSuppliers returns the starter supplier catalog for a new backend.
func DefaultSuppliers() []model.Supplier {
	return []model.Supplier{
		{ID: 1, Name: "ACME A.Ş."},
		{ID: 2, Name: "Globex Corporation"},
		{ID: 3, Name: "Initech"},
	}
}
