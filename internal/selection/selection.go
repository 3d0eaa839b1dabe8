// Package selection tracks which preview rows are chosen for import.
package selection

import "sort"

// State summarizes a selection for a tri-state "select all" control.
type State int

const (
	None State = iota
	Some
	All
)

// Set is a set of global row indices in [0, total). Selecting everything is
// stored as a sentinel plus the indices deselected afterwards, so large
// previews never materialize every index and rows need not be loaded first.
type Set struct {
	total int
	all   bool
	marks map[int]struct{} // selected indices, or excluded ones when all is set
}

// New creates an empty selection over total rows.
func New(total int) *Set {
	if total < 0 {
		total = 0
	}
	return &Set{total: total, marks: make(map[int]struct{})}
}

// Total returns the size of the index range.
func (s *Set) Total() int { return s.total }

func (s *Set) inRange(i int) bool {
	return i >= 0 && i < s.total
}

// IsSelected reports whether index i is selected.
func (s *Set) IsSelected(i int) bool {
	if !s.inRange(i) {
		return false
	}
	_, marked := s.marks[i]
	return s.all != marked
}

// Select adds index i. Out-of-range indices are ignored.
func (s *Set) Select(i int) {
	if !s.inRange(i) {
		return
	}
	if s.all {
		delete(s.marks, i)
	} else {
		s.marks[i] = struct{}{}
	}
}

// Deselect removes index i.
func (s *Set) Deselect(i int) {
	if !s.inRange(i) {
		return
	}
	if s.all {
		s.marks[i] = struct{}{}
	} else {
		delete(s.marks, i)
	}
}

// Toggle flips index i.
func (s *Set) Toggle(i int) {
	if s.IsSelected(i) {
		s.Deselect(i)
	} else {
		s.Select(i)
	}
}

// SetAll selects every index in [0, total) and adopts total as the new range.
func (s *Set) SetAll(total int) {
	if total < 0 {
		total = 0
	}
	s.total = total
	s.all = true
	s.marks = make(map[int]struct{})
}

// Resize adopts a new total, keeping the selection of indices still in range.
// Under "all", rows added by growing the range are selected.
func (s *Set) Resize(total int) {
	if total < 0 {
		total = 0
	}
	s.total = total
	for i := range s.marks {
		if i >= total {
			delete(s.marks, i)
		}
	}
}

// Clear deselects everything.
func (s *Set) Clear() {
	s.all = false
	s.marks = make(map[int]struct{})
}

// Invert flips every index.
func (s *Set) Invert() {
	s.all = !s.all
}

// Count returns the number of selected indices.
func (s *Set) Count() int {
	if s.all {
		return s.total - len(s.marks)
	}
	return len(s.marks)
}

// CountRange returns the number of selected indices in [from, to).
func (s *Set) CountRange(from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > s.total {
		to = s.total
	}
	n := 0
	for i := from; i < to; i++ {
		if s.IsSelected(i) {
			n++
		}
	}
	return n
}

// State reports whether nothing, some or everything is selected.
func (s *Set) State() State {
	switch c := s.Count(); {
	case c == 0:
		return None
	case c == s.total:
		return All
	default:
		return Some
	}
}

// Indices returns the selected indices in ascending order.
func (s *Set) Indices() []int {
	var out []int
	if s.all {
		out = make([]int, 0, s.Count())
		for i := 0; i < s.total; i++ {
			if _, excluded := s.marks[i]; !excluded {
				out = append(out, i)
			}
		}
		return out
	}
	out = make([]int, 0, len(s.marks))
	for i := range s.marks {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Replace makes indices the whole selection.
func (s *Set) Replace(indices []int) {
	s.Clear()
	for _, i := range indices {
		s.Select(i)
	}
}
