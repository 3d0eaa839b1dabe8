package wizard

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/finboard/finboard/internal/importer"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/preview"
	"github.com/finboard/finboard/internal/selection"
)

// Upload sends a document for parsing. Unsupported files are rejected before
// any request. Uploading from the Preview step replaces the current file:
// in-flight calls are aborted and the previous preview, selection and
// overrides are discarded. On success the session enters the Preview step;
// call FetchPage to load rows.
func (s *Session) Upload(ctx context.Context, fileName string, r io.Reader, sheet string) (model.PreviewHandle, error) {
	if r == nil || strings.TrimSpace(fileName) == "" {
		return model.PreviewHandle{}, ErrNoFile
	}
	if err := importer.ValidateUpload(fileName); err != nil {
		return model.PreviewHandle{}, err
	}
	if step := s.Step(); step != StepUpload && step != StepPreview {
		return model.PreviewHandle{}, fmt.Errorf("%w: upload from %s", ErrInvalidTransition, step)
	}

	gen := s.supersede()
	s.op.Lock()
	defer s.op.Unlock()
	if s.stale(gen) {
		return model.PreviewHandle{}, ErrStale
	}

	switch s.Step() {
	case StepPreview:
		if err := s.transition(EdgeReplaceFile); err != nil {
			return model.PreviewHandle{}, err
		}
		s.logger.Info("replacing uploaded file", "old", s.fileName, "new", fileName)
		s.fileName = ""
		s.store = nil
		s.sel = selection.New(0)
		s.clearRun()
	case StepUpload:
	default:
		return model.PreviewHandle{}, fmt.Errorf("%w: upload from %s", ErrInvalidTransition, s.Step())
	}

	var h model.PreviewHandle
	err := s.run(ctx, gen, callUpload, func(ctx context.Context) error {
		var err error
		h, err = s.deps.Preview.Upload(ctx, fileName, r, sheet)
		return err
	})
	if err != nil {
		return model.PreviewHandle{}, err
	}

	s.fileName = fileName
	s.store = preview.NewStore(s.deps.Preview, h.PreviewID, s.defaults.PageSize, h.Count)
	s.sel = selection.New(h.Count)
	if err := s.transition(EdgeUpload); err != nil {
		return model.PreviewHandle{}, err
	}
	s.logger.Info("uploaded file", "file", fileName, "preview_id", h.PreviewID, "rows", h.Count)
	return h, nil
}

// FetchPage loads one page of the preview and makes it visible. A newer
// FetchPage aborts an older one still in flight. On failure the previous
// page, rows and selection are kept and the call may be retried.
func (s *Session) FetchPage(ctx context.Context, page int) error {
	s.abort(callPage)
	gen := s.generation()
	s.op.Lock()
	defer s.op.Unlock()

	if s.stale(gen) {
		return ErrStale
	}
	if s.store == nil {
		return ErrNoFile
	}
	err := s.run(ctx, gen, callPage, func(ctx context.Context) error {
		return s.store.Fetch(ctx, page)
	})
	if err != nil {
		return err
	}
	s.sel.Resize(s.store.Total())
	return nil
}

// Refresh re-fetches the visible page, keeping page and page size so global
// indices stay valid.
func (s *Session) Refresh(ctx context.Context) error {
	page := 1
	s.op.Lock()
	if s.store != nil {
		page = s.store.Page()
	}
	s.op.Unlock()
	return s.FetchPage(ctx, page)
}

// selecting runs fn against the selection when the Preview step allows it.
func (s *Session) selecting(fn func(sel *selection.Set)) error {
	s.op.Lock()
	defer s.op.Unlock()
	if s.store == nil {
		return ErrNoFile
	}
	if step := s.Step(); step != StepPreview {
		return fmt.Errorf("%w: selection is fixed in %s", ErrInvalidTransition, step)
	}
	fn(s.sel)
	return nil
}

// Toggle flips the selection of the row at a global index.
func (s *Session) Toggle(index int) error {
	return s.selecting(func(sel *selection.Set) { sel.Toggle(index) })
}

// SelectAll selects every row of the preview, loaded or not.
func (s *Session) SelectAll() error {
	return s.selecting(func(sel *selection.Set) { sel.SetAll(s.store.Total()) })
}

// ClearSelection deselects every row.
func (s *Session) ClearSelection() error {
	return s.selecting(func(sel *selection.Set) { sel.Clear() })
}

// InvertSelection flips every row.
func (s *Session) InvertSelection() error {
	return s.selecting(func(sel *selection.Set) { sel.Invert() })
}

// Row is a visible preview row with its global index and selection state.
type Row struct {
	Index    int
	Selected bool
	model.ImportRow
}

// VisibleRows returns the rows of the visible page.
func (s *Session) VisibleRows() []Row {
	s.op.Lock()
	defer s.op.Unlock()
	if s.store == nil {
		return nil
	}
	entries := s.store.VisibleEntries()
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = Row{Index: e.Index, Selected: s.sel.IsSelected(e.Index), ImportRow: e.Row}
	}
	return rows
}

// IsSelected reports whether the row at a global index is selected.
func (s *Session) IsSelected(index int) bool {
	s.op.Lock()
	defer s.op.Unlock()
	return s.sel.IsSelected(index)
}

// SelectedCount returns the number of selected rows across all pages.
func (s *Session) SelectedCount() int {
	s.op.Lock()
	defer s.op.Unlock()
	return s.sel.Count()
}

// VisibleSelectedCount returns the number of selected rows on the visible page.
func (s *Session) VisibleSelectedCount() int {
	s.op.Lock()
	defer s.op.Unlock()
	if s.store == nil {
		return 0
	}
	from := preview.GlobalIndex(s.store.Page(), 0, s.store.Size())
	return s.sel.CountRange(from, from+len(s.store.Items()))
}

// SelectionState reports the tri-state of the select-all control.
func (s *Session) SelectionState() selection.State {
	s.op.Lock()
	defer s.op.Unlock()
	return s.sel.State()
}

// PreviewID returns the current preview id, or "" before an upload.
func (s *Session) PreviewID() string {
	s.op.Lock()
	defer s.op.Unlock()
	if s.store == nil {
		return ""
	}
	return s.store.PreviewID()
}

// FileName returns the uploaded file name.
func (s *Session) FileName() string {
	s.op.Lock()
	defer s.op.Unlock()
	return s.fileName
}

// Page returns the visible page and the page count.
func (s *Session) Page() (page, pages int) {
	s.op.Lock()
	defer s.op.Unlock()
	if s.store == nil {
		return 0, 0
	}
	return s.store.Page(), s.store.PageCount()
}

// Total returns the number of rows in the preview.
func (s *Session) Total() int {
	s.op.Lock()
	defer s.op.Unlock()
	if s.store == nil {
		return 0
	}
	return s.store.Total()
}
