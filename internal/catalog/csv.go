package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/finboard/finboard/internal/model"
)

const (
	accountFields  = 3
	supplierFields = 2
	colID          = 0
	colName        = 1
	colPaymentType = 2
)

// ReadAccounts reads an accounts CSV (id,name,payment_type_id).
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	records, err := readRecords(r, accountFields)
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	var accts []model.Account
	for i, rec := range records {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accts = append(accts, acct)
	}
	return accts, nil
}

// WriteAccounts writes an accounts CSV.
func WriteAccounts(w io.Writer, accts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"id", "name", "payment_type_id"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, a := range accts {
		if err := cw.Write(MarshalAccount(a)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(a model.Account) []string {
	row := make([]string, accountFields)
	row[colID] = strconv.Itoa(a.ID)
	row[colName] = a.Name
	if a.PaymentTypeID != 0 {
		row[colPaymentType] = strconv.Itoa(a.PaymentTypeID)
	}
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != accountFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", accountFields, len(record))
	}
	id, err := strconv.Atoi(record[colID])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing id %q: %w", record[colID], err)
	}
	var paymentType int
	if record[colPaymentType] != "" {
		paymentType, err = strconv.Atoi(record[colPaymentType])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing payment_type_id %q: %w", record[colPaymentType], err)
		}
	}
	return model.Account{ID: id, Name: record[colName], PaymentTypeID: paymentType}, nil
}

// ReadSuppliers reads a suppliers CSV (id,name).
func ReadSuppliers(r io.Reader) ([]model.Supplier, error) {
	records, err := readRecords(r, supplierFields)
	if err != nil {
		return nil, fmt.Errorf("reading suppliers CSV: %w", err)
	}

	var sups []model.Supplier
	for i, rec := range records {
		id, err := strconv.Atoi(rec[colID])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing id %q: %w", i+2, rec[colID], err)
		}
		sups = append(sups, model.Supplier{ID: id, Name: rec[colName]})
	}
	return sups, nil
}

// WriteSuppliers writes a suppliers CSV.
func WriteSuppliers(w io.Writer, sups []model.Supplier) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"id", "name"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, s := range sups {
		if err := cw.Write([]string{strconv.Itoa(s.ID), s.Name}); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// readRecords returns the data rows of a CSV, header excluded.
func readRecords(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
