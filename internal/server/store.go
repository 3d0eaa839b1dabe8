package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finboard/finboard/internal/catalog"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/normalize"
)

var (
	// ErrNotFound is returned for unknown previews.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a catalog name is already taken.
	ErrConflict = errors.New("already exists")
	// ErrInvalid is returned for malformed catalog requests.
	ErrInvalid = errors.New("invalid request")
)

// Expense is a committed invoice.
type Expense struct {
	InvoiceNumber string
	AccountID     int
	SupplierID    int
	BudgetItemID  int
	Row           model.ImportRow
	CommittedAt   time.Time
}

type previewData struct {
	rows    []model.ImportRow
	created time.Time
}

// Store is the in-memory state of the reference backend.
type Store struct {
	mu        sync.Mutex
	accounts  []model.Account
	suppliers []model.Supplier
	previews  map[string]*previewData
	expenses  map[string]Expense
	now       func() time.Time
}

// NewStore creates a Store seeded with the given catalog.
func NewStore(accts []model.Account, sups []model.Supplier) *Store {
	return &Store{
		accounts:  append([]model.Account(nil), accts...),
		suppliers: append([]model.Supplier(nil), sups...),
		previews:  make(map[string]*previewData),
		expenses:  make(map[string]Expense),
		now:       time.Now,
	}
}

// Accounts returns every account.
func (s *Store) Accounts() []model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Account(nil), s.accounts...)
}

// Suppliers returns every supplier.
func (s *Store) Suppliers() []model.Supplier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Supplier(nil), s.suppliers...)
}

// CreateAccount adds an account. Names are unique per payment type after
// normalization.
func (s *Store) CreateAccount(in model.NewAccount) (model.Account, error) {
	if normalize.Key(in.Name) == "" {
		return model.Account{}, fmt.Errorf("%w: account name is required", ErrInvalid)
	}
	if in.PaymentTypeID <= 0 {
		return model.Account{}, fmt.Errorf("%w: payment_type_id is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := catalog.NewAccountIndex(s.accounts, in.PaymentTypeID).Lookup(in.Name); ok {
		return model.Account{}, fmt.Errorf("account %q: %w", in.Name, ErrConflict)
	}
	id := 1
	for _, a := range s.accounts {
		id = max(id, a.ID+1)
	}
	acct := model.Account{ID: id, Name: in.Name, PaymentTypeID: in.PaymentTypeID}
	s.accounts = append(s.accounts, acct)
	return acct, nil
}

// CreateSupplier adds a supplier. Names are unique after normalization.
func (s *Store) CreateSupplier(in model.NewSupplier) (model.Supplier, error) {
	if normalize.Key(in.Name) == "" {
		return model.Supplier{}, fmt.Errorf("%w: supplier name is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := catalog.NewSupplierIndex(s.suppliers).Lookup(in.Name); ok {
		return model.Supplier{}, fmt.Errorf("supplier %q: %w", in.Name, ErrConflict)
	}
	id := 1
	for _, sup := range s.suppliers {
		id = max(id, sup.ID+1)
	}
	sup := model.Supplier{ID: id, Name: in.Name}
	s.suppliers = append(s.suppliers, sup)
	return sup, nil
}

// AddPreview stores parsed rows under a new preview id.
func (s *Store) AddPreview(rows []model.ImportRow) model.PreviewHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.previews[id] = &previewData{rows: rows, created: s.now()}
	return model.PreviewHandle{PreviewID: id, Count: len(rows)}
}

// Page returns one page of a preview.
func (s *Store) Page(previewID string, page, size int) (model.PreviewPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.previews[previewID]
	if !ok {
		return model.PreviewPage{}, fmt.Errorf("preview %s: %w", previewID, ErrNotFound)
	}
	from := (page - 1) * size
	to := min(from+size, len(p.rows))
	items := []model.ImportRow{}
	if from < to {
		items = append(items, p.rows[from:to]...)
	}
	return model.PreviewPage{Items: items, Total: len(p.rows)}, nil
}

// previewRows returns the rows of a preview.
func (s *Store) previewRows(previewID string) ([]model.ImportRow, error) {
	p, ok := s.previews[previewID]
	if !ok {
		return nil, fmt.Errorf("preview %s: %w", previewID, ErrNotFound)
	}
	return p.rows, nil
}

// Expire drops previews older than ttl and returns how many were removed.
func (s *Store) Expire(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	n := 0
	for id, p := range s.previews {
		if p.created.Before(cutoff) {
			delete(s.previews, id)
			n++
		}
	}
	return n
}

// Previews returns the number of live previews.
func (s *Store) Previews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.previews)
}

// Expenses returns committed expenses ordered by invoice number.
func (s *Store) Expenses() []Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out
}
