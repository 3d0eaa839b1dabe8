package preview

import (
	"context"
	"fmt"
	"sort"

	"github.com/finboard/finboard/internal/model"
)

// DefaultPageSize is used when a Store is created with a non-positive size.
const DefaultPageSize = 50

// Fetcher returns one page of rows for a preview.
type Fetcher interface {
	FetchPage(ctx context.Context, previewID string, page, size int) (model.PreviewPage, error)
}

// Entry is a materialized row together with its global index.
type Entry struct {
	Index int
	Row   model.ImportRow
}

// Store is a paginated view over one preview. It keeps the visible page plus
// every row materialized so far, keyed by global index, so rows fetched on
// earlier pages stay addressable after paging.
type Store struct {
	fetcher   Fetcher
	previewID string
	page      int
	size      int
	total     int
	items     []model.ImportRow
	rows      map[int]model.ImportRow
}

// NewStore creates a Store for previewID. total is the row count reported by
// the upload and is refreshed by every fetch.
func NewStore(f Fetcher, previewID string, size, total int) *Store {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Store{
		fetcher:   f,
		previewID: previewID,
		page:      1,
		size:      size,
		total:     total,
		rows:      make(map[int]model.ImportRow),
	}
}

// PreviewID returns the preview this store pages through.
func (s *Store) PreviewID() string { return s.previewID }

// Page returns the visible 1-based page number.
func (s *Store) Page() int { return s.page }

// Size returns the page size.
func (s *Store) Size() int { return s.size }

// Total returns the number of rows in the preview.
func (s *Store) Total() int { return s.total }

// PageCount returns the number of pages.
func (s *Store) PageCount() int { return PageCount(s.total, s.size) }

// Items returns the rows of the visible page.
func (s *Store) Items() []model.ImportRow { return s.items }

// VisibleEntries returns the visible page's rows with their global indices.
func (s *Store) VisibleEntries() []Entry {
	entries := make([]Entry, len(s.items))
	for i, row := range s.items {
		entries[i] = Entry{Index: GlobalIndex(s.page, i, s.size), Row: row}
	}
	return entries
}

// Fetch loads page and makes it the visible page. On error the previous page
// stays visible.
func (s *Store) Fetch(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("invalid page %d", page)
	}
	p, err := s.fetcher.FetchPage(ctx, s.previewID, page, s.size)
	if err != nil {
		return err
	}
	s.page = page
	s.items = p.Items
	s.absorb(page, p)
	return nil
}

// Refresh re-fetches the visible page with the same page and size, so global
// indices computed earlier remain valid.
func (s *Store) Refresh(ctx context.Context) error {
	return s.Fetch(ctx, s.page)
}

// Row returns a materialized row by global index.
func (s *Store) Row(index int) (model.ImportRow, bool) {
	row, ok := s.rows[index]
	return row, ok
}

// Loaded reports whether the row at index has been materialized.
func (s *Store) Loaded(index int) bool {
	_, ok := s.rows[index]
	return ok
}

// EnsureLoaded fetches every page holding an index that is not yet
// materialized. The visible page does not change. progress, when non-nil, is
// called after each page with the number of pages done and needed.
func (s *Store) EnsureLoaded(ctx context.Context, indices []int, progress func(done, total int)) error {
	need := make(map[int]bool)
	for _, idx := range indices {
		if idx < 0 || idx >= s.total || s.Loaded(idx) {
			continue
		}
		page, _ := Locate(idx, s.size)
		need[page] = true
	}

	pages := make([]int, 0, len(need))
	for p := range need {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	for i, page := range pages {
		p, err := s.fetcher.FetchPage(ctx, s.previewID, page, s.size)
		if err != nil {
			return err
		}
		s.absorb(page, p)
		if page == s.page {
			s.items = p.Items
		}
		if progress != nil {
			progress(i+1, len(pages))
		}
	}
	return nil
}

// Entries projects indices onto materialized rows, in ascending index order.
// Indices whose rows are not loaded are skipped.
func (s *Store) Entries(indices []int) []Entry {
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	entries := make([]Entry, 0, len(sorted))
	for _, idx := range sorted {
		if row, ok := s.rows[idx]; ok {
			entries = append(entries, Entry{Index: idx, Row: row})
		}
	}
	return entries
}

// Missing returns, in ascending order, the indices whose rows are not
// materialized. After EnsureLoaded these are rows the backend never served.
func (s *Store) Missing(indices []int) []int {
	var out []int
	for _, idx := range indices {
		if !s.Loaded(idx) {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func (s *Store) absorb(page int, p model.PreviewPage) {
	s.total = p.Total
	for i, row := range p.Items {
		s.rows[GlobalIndex(page, i, s.size)] = row
	}
}
