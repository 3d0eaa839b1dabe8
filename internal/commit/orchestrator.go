package commit

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/preview"
)

// Committer is the endpoint the orchestrator sends batches to.
type Committer interface {
	Commit(ctx context.Context, req model.CommitRequest) (model.CommitResult, error)
}

// Recorder receives the outcome of every commit attempt.
type Recorder interface {
	Record(previewID string, attempt int, invoices []string, res model.CommitResult) error
}

// Batch is one commit attempt.
type Batch struct {
	PreviewID string
	Entries   []preview.Entry
	Options   model.CommitOptions
	Overrides []model.Override
	// Attempt numbers the commit within one wizard run, starting at 1.
	Attempt int
}

// Orchestrator assembles commit requests and records their outcome.
type Orchestrator struct {
	api      Committer
	recorder Recorder
	logger   *log.Logger
}

// NewOrchestrator creates an Orchestrator. recorder may be nil.
func NewOrchestrator(api Committer, recorder Recorder, logger *log.Logger) *Orchestrator {
	return &Orchestrator{api: api, recorder: recorder, logger: logger}
}

// Commit sends one batch. The call is never replayed: a transport error is
// returned as is and the caller decides whether to narrow and retry.
func (o *Orchestrator) Commit(ctx context.Context, b Batch) (model.CommitResult, error) {
	if len(b.Entries) == 0 {
		return model.CommitResult{}, errors.New("commit batch is empty")
	}

	req := model.CommitRequest{
		PreviewID: b.PreviewID,
		Indices:   Indices(b.Entries),
		Options:   b.Options,
		Overrides: Compact(b.Overrides),
	}
	o.logger.Debug("committing batch", "preview_id", b.PreviewID, "attempt", b.Attempt,
		"rows", len(req.Indices), "overrides", len(req.Overrides))

	res, err := o.api.Commit(ctx, req)
	if err != nil {
		return model.CommitResult{}, err
	}

	if res.Succeeded() {
		o.logger.Info("commit succeeded", "preview_id", b.PreviewID, "attempt", b.Attempt,
			"created", res.Created, "updated", res.Updated)
	} else {
		o.logger.Warn("commit partially failed", "preview_id", b.PreviewID, "attempt", b.Attempt,
			"created", res.Created, "updated", res.Updated, "errors", len(res.Errors))
	}

	if o.recorder != nil {
		if err := o.recorder.Record(b.PreviewID, b.Attempt, invoices(b.Entries), res); err != nil {
			o.logger.Error("recording commit outcome", "err", err)
		}
	}
	return res, nil
}

// Indices returns the sorted, distinct global indices of entries.
func Indices(entries []preview.Entry) []int {
	seen := make(map[int]bool, len(entries))
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		if seen[e.Index] {
			continue
		}
		seen[e.Index] = true
		out = append(out, e.Index)
	}
	sort.Ints(out)
	return out
}

// Compact drops empty overrides and keeps one override per invoice number;
// a later override for the same invoice replaces the earlier one.
func Compact(overrides []model.Override) []model.Override {
	return MergeOverrides(nil, overrides)
}

// MergeOverrides combines the overrides of a previous attempt with new ones.
// A new override replaces the prior one for the same invoice number; prior
// overrides for untouched invoices are preserved. Order is stable: prior
// invoices first, then invoices seen only in next.
func MergeOverrides(prior, next []model.Override) []model.Override {
	pos := make(map[string]int)
	out := make([]model.Override, 0, len(prior)+len(next))
	put := func(o model.Override) {
		if o.Empty() {
			return
		}
		if i, ok := pos[o.InvoiceNumber]; ok {
			out[i] = o
			return
		}
		pos[o.InvoiceNumber] = len(out)
		out = append(out, o)
	}
	for _, o := range prior {
		put(o)
	}
	for _, o := range next {
		put(o)
	}
	return out
}

// RetryScope returns the entries whose invoice number was reported in errs.
// Rows that committed cleanly are never part of the scope. Rows without an
// invoice number are never matched, since an error naming no invoice cannot
// be told apart between them; see Unkeyed.
func RetryScope(entries []preview.Entry, errs []model.RowError) []preview.Entry {
	failed := model.CommitResult{Errors: errs}.FailedInvoices()
	var scope []preview.Entry
	for _, e := range entries {
		if e.Row.InvoiceNumber != "" && failed[e.Row.InvoiceNumber] {
			scope = append(scope, e)
		}
	}
	return scope
}

// Unkeyed returns the errors that name no invoice number. They cannot be
// retried and must be fixed in the source document.
func Unkeyed(errs []model.RowError) []model.RowError {
	var out []model.RowError
	for _, re := range errs {
		if re.InvoiceNumber == "" {
			out = append(out, re)
		}
	}
	return out
}

// OverridesFor returns the overrides that target the invoices of entries,
// keyed by invoice number.
func OverridesFor(overrides []model.Override, entries []preview.Entry) map[string]model.Override {
	wanted := make(map[string]bool, len(entries))
	for _, e := range entries {
		wanted[e.Row.InvoiceNumber] = true
	}
	out := make(map[string]model.Override)
	for _, o := range Compact(overrides) {
		if wanted[o.InvoiceNumber] {
			out[o.InvoiceNumber] = o
		}
	}
	return out
}

// Summary renders a one-line description of a commit result.
func Summary(res model.CommitResult) string {
	if res.Succeeded() {
		return fmt.Sprintf("%d created, %d updated", res.Created, res.Updated)
	}
	return fmt.Sprintf("%d created, %d updated, %d failed", res.Created, res.Updated, len(res.Errors))
}

func invoices(entries []preview.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Row.InvoiceNumber)
	}
	return out
}
