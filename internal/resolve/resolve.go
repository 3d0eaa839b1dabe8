// Package resolve maps the free-text supplier and account names of selected
// preview rows to catalog ids, creating missing catalog entries.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/finboard/finboard/internal/catalog"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/normalize"
	"github.com/finboard/finboard/internal/preview"
)

// Catalog is the subset of the catalog client the engine needs.
type Catalog interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	CreateAccount(ctx context.Context, acct model.NewAccount) (model.Account, error)
	CreateSupplier(ctx context.Context, sup model.NewSupplier) (model.Supplier, error)
}

// Params scopes one resolve execution.
type Params struct {
	// PaymentTypeID partitions accounts. Zero means unknown: every account is
	// searched and no account is ever created.
	PaymentTypeID int
	// Manual holds ids the user picked explicitly, keyed by invoice number.
	// A manual id wins over name resolution for that field.
	Manual map[string]model.Override
}

// Result is the outcome of one resolve execution.
type Result struct {
	Overrides        []model.Override
	AccountsCreated  int
	SuppliersCreated int
	// Unresolved lists global indices of rows that produced no override.
	Unresolved []int
}

// Engine resolves rows against the remote catalog.
type Engine struct {
	catalog Catalog
	logger  *log.Logger
}

// NewEngine creates an Engine.
func NewEngine(c Catalog, logger *log.Logger) *Engine {
	return &Engine{catalog: c, logger: logger}
}

// kind is the capability record shared by accounts and suppliers: where to
// look a key up, and how to create an entity when the lookup misses.
type kind struct {
	name    string
	index   *catalog.Index
	created map[string]int  // created during this execution
	failed  map[string]bool // creation attempted and failed during this execution
	create  func(ctx context.Context, name string) (int, error)
	count   int
}

func newKind(name string, index *catalog.Index, create func(ctx context.Context, name string) (int, error)) *kind {
	return &kind{
		name:    name,
		index:   index,
		created: make(map[string]int),
		failed:  make(map[string]bool),
		create:  create,
	}
}

// resolveOrCreate returns the id for name, or 0 when it cannot be resolved.
// At most one create call is issued per normalized key, successful or not.
// Only context errors are returned; other create failures are logged.
func (k *kind) resolveOrCreate(ctx context.Context, name string, logger *log.Logger) (int, error) {
	key := normalize.Key(name)
	if key == "" {
		return 0, nil
	}
	if id, ok := k.created[key]; ok {
		return id, nil
	}
	if id, ok := k.index.LookupKey(key); ok {
		return id, nil
	}
	if k.create == nil || k.failed[key] {
		return 0, nil
	}

	id, err := k.create(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		k.failed[key] = true
		logger.Warn("create failed, row left unresolved", "kind", k.name, "name", name, "err", err)
		return 0, nil
	}
	k.created[key] = id
	k.count++
	logger.Info("created catalog entry", "kind", k.name, "name", name, "id", id)
	return id, nil
}

// Resolve produces overrides for entries, in input order. The catalog is
// fetched fresh on every call, so entities created by an earlier failed
// attempt are found rather than created again.
func (e *Engine) Resolve(ctx context.Context, entries []preview.Entry, p Params) (Result, error) {
	accts, err := e.catalog.ListAccounts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading accounts: %w", err)
	}
	sups, err := e.catalog.ListSuppliers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading suppliers: %w", err)
	}

	var createAccount func(ctx context.Context, name string) (int, error)
	if p.PaymentTypeID != 0 {
		createAccount = func(ctx context.Context, name string) (int, error) {
			a, err := e.catalog.CreateAccount(ctx, model.NewAccount{Name: name, PaymentTypeID: p.PaymentTypeID})
			return a.ID, err
		}
	}
	accounts := newKind("account", catalog.NewAccountIndex(accts, p.PaymentTypeID), createAccount)
	suppliers := newKind("supplier", catalog.NewSupplierIndex(sups), func(ctx context.Context, name string) (int, error) {
		s, err := e.catalog.CreateSupplier(ctx, model.NewSupplier{Name: name})
		return s.ID, err
	})

	var res Result
	byInvoice := make(map[string]int) // invoice number -> position in res.Overrides
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		row := entry.Row
		manual := p.Manual[row.InvoiceNumber]

		accountID := manual.AccountID
		if accountID == 0 {
			accountID, err = accounts.resolveOrCreate(ctx, row.AccountName, e.logger)
			if err != nil {
				return Result{}, err
			}
		}
		supplierID := manual.SupplierID
		if supplierID == 0 {
			supplierID, err = suppliers.resolveOrCreate(ctx, row.Supplier, e.logger)
			if err != nil {
				return Result{}, err
			}
		}

		o := model.Override{InvoiceNumber: row.InvoiceNumber, AccountID: accountID, SupplierID: supplierID}
		if o.Empty() {
			res.Unresolved = append(res.Unresolved, entry.Index)
			continue
		}
		if row.InvoiceNumber == "" {
			e.logger.Warn("row has no invoice number, override cannot be sent", "index", entry.Index)
			res.Unresolved = append(res.Unresolved, entry.Index)
			continue
		}

		// One override per invoice number; later rows only fill gaps.
		if pos, ok := byInvoice[row.InvoiceNumber]; ok {
			prev := &res.Overrides[pos]
			if prev.AccountID == 0 {
				prev.AccountID = o.AccountID
			}
			if prev.SupplierID == 0 {
				prev.SupplierID = o.SupplierID
			}
			continue
		}
		byInvoice[row.InvoiceNumber] = len(res.Overrides)
		res.Overrides = append(res.Overrides, o)
	}

	res.AccountsCreated = accounts.count
	res.SuppliersCreated = suppliers.count
	e.logger.Debug("resolved rows", "rows", len(entries), "overrides", len(res.Overrides),
		"accounts_created", res.AccountsCreated, "suppliers_created", res.SuppliersCreated)
	return res, nil
}
