// Package catalog provides access to the account and supplier reference catalogs.
package catalog

import (
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/normalize"
)

// Index provides in-memory lookup of catalog entity ids by normalized name.
type Index struct {
	byKey   map[string]int
	byID    map[int]string
	ordered []int
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{byKey: make(map[string]int), byID: make(map[int]string)}
}

// NewAccountIndex indexes accounts in the paymentTypeID partition.
// A zero paymentTypeID indexes every account.
func NewAccountIndex(accts []model.Account, paymentTypeID int) *Index {
	idx := NewIndex()
	for _, a := range accts {
		if paymentTypeID != 0 && a.PaymentTypeID != paymentTypeID {
			continue
		}
		idx.Add(a.Name, a.ID)
	}
	return idx
}

// NewSupplierIndex indexes every supplier.
func NewSupplierIndex(sups []model.Supplier) *Index {
	idx := NewIndex()
	for _, s := range sups {
		idx.Add(s.Name, s.ID)
	}
	return idx
}

// Add records name -> id. The first id added under a key wins.
func (i *Index) Add(name string, id int) {
	key := normalize.Key(name)
	if key == "" {
		return
	}
	if _, ok := i.byKey[key]; ok {
		return
	}
	i.byKey[key] = id
	i.byID[id] = name
	i.ordered = append(i.ordered, id)
}

// Lookup returns the id registered for name's normalized key.
func (i *Index) Lookup(name string) (int, bool) {
	id, ok := i.byKey[normalize.Key(name)]
	return id, ok
}

// LookupKey returns the id registered for an already-normalized key.
func (i *Index) LookupKey(key string) (int, bool) {
	id, ok := i.byKey[key]
	return id, ok
}

// Name returns the display name registered for id.
func (i *Index) Name(id int) (string, bool) {
	n, ok := i.byID[id]
	return n, ok
}

// Exists reports whether id is indexed.
func (i *Index) Exists(id int) bool {
	_, ok := i.byID[id]
	return ok
}

// IDs returns indexed ids in insertion order.
func (i *Index) IDs() []int {
	return i.ordered
}

// Len returns the number of indexed keys.
func (i *Index) Len() int {
	return len(i.byKey)
}
