package resolve

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/preview"
)

// fakeCatalog is an in-memory catalog that counts create calls per name.
type fakeCatalog struct {
	accounts        []model.Account
	suppliers       []model.Supplier
	nextID          int
	accountCreates  map[string]int
	supplierCreates map[string]int
	failSupplier    map[string]bool
	listErr         error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		accounts: []model.Account{
			{ID: 1, Name: "Office Rent", PaymentTypeID: 1},
			{ID: 2, Name: "Travel", PaymentTypeID: 2},
		},
		suppliers:       []model.Supplier{{ID: 10, Name: "Globex"}},
		nextID:          100,
		accountCreates:  make(map[string]int),
		supplierCreates: make(map[string]int),
		failSupplier:    make(map[string]bool),
	}
}

func (f *fakeCatalog) ListAccounts(context.Context) ([]model.Account, error) {
	return f.accounts, f.listErr
}

func (f *fakeCatalog) ListSuppliers(context.Context) ([]model.Supplier, error) {
	return f.suppliers, f.listErr
}

func (f *fakeCatalog) CreateAccount(_ context.Context, a model.NewAccount) (model.Account, error) {
	f.accountCreates[a.Name]++
	f.nextID++
	acct := model.Account{ID: f.nextID, Name: a.Name, PaymentTypeID: a.PaymentTypeID}
	f.accounts = append(f.accounts, acct)
	return acct, nil
}

func (f *fakeCatalog) CreateSupplier(_ context.Context, s model.NewSupplier) (model.Supplier, error) {
	f.supplierCreates[s.Name]++
	if f.failSupplier[s.Name] {
		return model.Supplier{}, errors.New("validation failed")
	}
	f.nextID++
	sup := model.Supplier{ID: f.nextID, Name: s.Name}
	f.suppliers = append(f.suppliers, sup)
	return sup, nil
}

func (f *fakeCatalog) totalSupplierCreates() int {
	n := 0
	for _, c := range f.supplierCreates {
		n += c
	}
	return n
}

func entries(rows ...model.ImportRow) []preview.Entry {
	out := make([]preview.Entry, len(rows))
	for i, r := range rows {
		out[i] = preview.Entry{Index: i, Row: r}
	}
	return out
}

func newEngine(c Catalog) *Engine {
	return NewEngine(c, log.New(io.Discard))
}

func TestResolve_SameSupplierDifferentCaseCreatedOnce(t *testing.T) {
	cat := newFakeCatalog()
	res, err := newEngine(cat).Resolve(context.Background(), entries(
		model.ImportRow{InvoiceNumber: "F-1", Supplier: "ACME A.Ş."},
		model.ImportRow{InvoiceNumber: "F-2", Supplier: "acme a.ş."},
	), Params{})
	require.NoError(t, err)

	assert.Equal(t, 1, cat.totalSupplierCreates(), "exactly one POST suppliers")
	assert.Equal(t, 1, cat.supplierCreates["ACME A.Ş."], "created with the raw name of the first row")
	require.Len(t, res.Overrides, 2)
	assert.Equal(t, res.Overrides[0].SupplierID, res.Overrides[1].SupplierID)
	assert.NotZero(t, res.Overrides[0].SupplierID)
	assert.Equal(t, 1, res.SuppliersCreated)
}

func TestResolve_CreateCountBoundedByDistinctNames(t *testing.T) {
	cat := newFakeCatalog()
	names := []string{"Umbrella", "UMBRELLA", " umbrella ", "Wayne Ent", "wayne  ent", "Globex", "Stark"}
	var rows []model.ImportRow
	for i, n := range names {
		rows = append(rows, model.ImportRow{InvoiceNumber: string(rune('A' + i)), Supplier: n})
	}

	_, err := newEngine(cat).Resolve(context.Background(), entries(rows...), Params{})
	require.NoError(t, err)

	// Umbrella, Wayne Ent, Stark need creating; Globex exists.
	assert.Equal(t, 3, cat.totalSupplierCreates())
	for name, n := range cat.supplierCreates {
		assert.Equal(t, 1, n, "supplier %q created more than once", name)
	}
}

func TestResolve_CatalogHitNoCreate(t *testing.T) {
	cat := newFakeCatalog()
	res, err := newEngine(cat).Resolve(context.Background(), entries(
		model.ImportRow{InvoiceNumber: "F-1", Supplier: "GLOBEX", AccountName: "office rent"},
	), Params{PaymentTypeID: 1})
	require.NoError(t, err)

	assert.Zero(t, cat.totalSupplierCreates())
	assert.Empty(t, cat.accountCreates)
	assert.Equal(t, []model.Override{{InvoiceNumber: "F-1", AccountID: 1, SupplierID: 10}}, res.Overrides)
}

func TestResolve_AccountPartition(t *testing.T) {
	cat := newFakeCatalog()
	// "Travel" lives in partition 2; under partition 1 it is missing and gets created.
	res, err := newEngine(cat).Resolve(context.Background(), entries(
		model.ImportRow{InvoiceNumber: "F-1", AccountName: "Travel"},
		model.ImportRow{InvoiceNumber: "F-2", AccountName: "TRAVEL"},
	), Params{PaymentTypeID: 1})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Travel": 1}, cat.accountCreates)
	require.Len(t, res.Overrides, 2)
	assert.NotEqual(t, 2, res.Overrides[0].AccountID)
	assert.Equal(t, res.Overrides[0].AccountID, res.Overrides[1].AccountID)
	assert.Equal(t, 1, res.AccountsCreated)
}

func TestResolve_NoPartitionNeverCreatesAccounts(t *testing.T) {
	cat := newFakeCatalog()
	res, err := newEngine(cat).Resolve(context.Background(), entries(
		model.ImportRow{InvoiceNumber: "F-1", AccountName: "Travel"},
		model.ImportRow{InvoiceNumber: "F-2", AccountName: "Marketing"},
	), Params{})
	require.NoError(t, err)

	assert.Empty(t, cat.accountCreates)
	assert.Equal(t, []model.Override{{InvoiceNumber: "F-1", AccountID: 2}}, res.Overrides)
	assert.Equal(t, []int{1}, res.Unresolved)
}

func TestResolve_ManualOverrideWins(t *testing.T) {
	cat := newFakeCatalog()
	res, err := newEngine(cat).Resolve(context.Background(), entries(
		model.ImportRow{InvoiceNumber: "F-1", Supplier: "Brand New Co", AccountName: "Office Rent"},
	), Params{
		PaymentTypeID: 1,
		Manual:        map[string]model.Override{"F-1": {InvoiceNumber: "F-1", SupplierID: 55}},
	})
	require.NoError(t, err)

	assert.Zero(t, cat.totalSupplierCreates(), "manual supplier skips resolution")
	assert.Equal(t, []model.Override{{InvoiceNumber: "F-1", AccountID: 1, SupplierID: 55}}, res.Overrides)
}

func TestResolve_CreateFailureSwallowed(t *testing.T) {
	cat := newFakeCatalog()
	cat.failSupplier["Bad Name"] = true

	res, err := newEngine(cat).Resolve(context.Background(), entries(
		model.ImportRow{InvoiceNumber: "F-1", Supplier: "Bad Name"},
		model.ImportRow{InvoiceNumber: "F-2", Supplier: "BAD NAME"},
		model.ImportRow{InvoiceNumber: "F-3", Supplier: "Good Name"},
	), Params{})
	require.NoError(t, err)

	assert.Equal(t, 1, cat.supplierCreates["Bad Name"], "failed name is not retried in the same run")
	assert.Equal(t, []int{0, 1}, res.Unresolved)
	require.Len(t, res.Overrides, 1)
	assert.Equal(t, "F-3", res.Overrides[0].InvoiceNumber)
}

func TestResolve_ListFailureReturned(t *testing.T) {
	cat := newFakeCatalog()
	cat.listErr = errors.New("unreachable")

	_, err := newEngine(cat).Resolve(context.Background(), entries(model.ImportRow{Supplier: "x"}), Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading accounts")
}

func TestResolve_DuplicateInvoiceMerged(t *testing.T) {
	cat := newFakeCatalog()
	res, err := newEngine(cat).Resolve(context.Background(), entries(
		model.ImportRow{InvoiceNumber: "F-1", Supplier: "Globex"},
		model.ImportRow{InvoiceNumber: "F-1", AccountName: "Office Rent"},
	), Params{PaymentTypeID: 1})
	require.NoError(t, err)

	assert.Equal(t, []model.Override{{InvoiceNumber: "F-1", AccountID: 1, SupplierID: 10}}, res.Overrides)
}

func TestResolve_EmptyInvoiceNumberUnresolved(t *testing.T) {
	cat := newFakeCatalog()
	res, err := newEngine(cat).Resolve(context.Background(), entries(
		model.ImportRow{Supplier: "Globex"},
	), Params{})
	require.NoError(t, err)

	assert.Empty(t, res.Overrides)
	assert.Equal(t, []int{0}, res.Unresolved)
}

func TestResolve_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(newFakeCatalog()).Resolve(ctx, entries(model.ImportRow{InvoiceNumber: "F-1", Supplier: "x"}), Params{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_SecondRunFindsEntitiesCreatedByFirst(t *testing.T) {
	cat := newFakeCatalog()
	eng := newEngine(cat)
	rows := entries(model.ImportRow{InvoiceNumber: "F-1", Supplier: "Hooli"})

	first, err := eng.Resolve(context.Background(), rows, Params{})
	require.NoError(t, err)
	second, err := eng.Resolve(context.Background(), rows, Params{})
	require.NoError(t, err)

	assert.Equal(t, 1, cat.supplierCreates["Hooli"])
	assert.Equal(t, first.Overrides, second.Overrides)
	assert.Zero(t, second.SuppliersCreated)
}
