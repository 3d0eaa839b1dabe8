package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/finboard/finboard/internal/commit"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/preview"
	"github.com/finboard/finboard/internal/resolve"
)

// SetOptions replaces the batch defaults sent with the next commit.
func (s *Session) SetOptions(opts model.CommitOptions) {
	s.op.Lock()
	defer s.op.Unlock()
	s.options = opts
}

// Options returns the current batch defaults.
func (s *Session) Options() model.CommitOptions {
	s.op.Lock()
	defer s.op.Unlock()
	return s.options
}

// SetManualOverride pins ids for one invoice; they win over name resolution.
// An override with no id removes the pin.
func (s *Session) SetManualOverride(o model.Override) error {
	if o.InvoiceNumber == "" {
		return errors.New("manual override needs an invoice number")
	}
	s.op.Lock()
	defer s.op.Unlock()
	if s.store == nil {
		return ErrNoFile
	}
	if o.Empty() {
		delete(s.manual, o.InvoiceNumber)
		return nil
	}
	s.manual[o.InvoiceNumber] = o
	return nil
}

// ManualOverrides returns the pinned ids keyed by invoice number.
func (s *Session) ManualOverrides() map[string]model.Override {
	s.op.Lock()
	defer s.op.Unlock()
	out := make(map[string]model.Override, len(s.manual))
	for k, v := range s.manual {
		out[k] = v
	}
	return out
}

// BeginResolve moves from Preview to Resolve. Pages holding selected rows
// that were never loaded are fetched first; the visible page does not change.
// progress, when non-nil, reports pages loaded. A selected row the backend
// did not serve fails with ErrRowsNotLoaded and the step stays Preview.
func (s *Session) BeginResolve(ctx context.Context, progress func(done, total int)) error {
	gen := s.generation()
	s.op.Lock()
	defer s.op.Unlock()

	if s.stale(gen) {
		return ErrStale
	}
	if s.store == nil {
		return ErrNoFile
	}
	if step := s.Step(); step != StepPreview {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, EdgeResolve, step)
	}
	if s.sel.Count() == 0 {
		return ErrNoSelection
	}

	indices := s.sel.Indices()
	err := s.run(ctx, gen, callLoad, func(ctx context.Context) error {
		return s.store.EnsureLoaded(ctx, indices, progress)
	})
	if err != nil {
		return fmt.Errorf("loading selected rows: %w", err)
	}
	if missing := s.store.Missing(indices); len(missing) > 0 {
		return fmt.Errorf("%w: %d of %d selected rows, first is row %d", ErrRowsNotLoaded,
			len(missing), len(indices), missing[0]+1)
	}

	entries := s.store.Entries(indices)
	scope, dropped := s.applyPolicy(entries)
	if len(scope) == 0 {
		return fmt.Errorf("%w: all %d selected rows are unmatched", ErrNoSelection, len(entries))
	}
	if err := s.transition(EdgeResolve); err != nil {
		return err
	}
	s.scope = scope
	s.dropped = dropped
	if len(dropped) > 0 {
		s.logger.Warn("unmatched rows withheld from commit", "rows", len(dropped))
	}
	return nil
}

// applyPolicy splits entries into rows to commit and rows withheld by the
// unmatched-row policy.
func (s *Session) applyPolicy(entries []preview.Entry) (keep, dropped []preview.Entry) {
	if s.defaults.Unmatched != UnmatchedDrop {
		return entries, nil
	}
	for _, e := range entries {
		if e.Row.AccountName == "" && s.manual[e.Row.InvoiceNumber].AccountID == 0 {
			dropped = append(dropped, e)
			continue
		}
		keep = append(keep, e)
	}
	return keep, dropped
}

// Back returns from Resolve to Preview, aborting calls of the Resolve step.
// Selection and manual overrides are kept.
func (s *Session) Back() error {
	if step := s.Step(); step != StepResolve {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, EdgeBack, step)
	}
	s.supersede()
	s.op.Lock()
	defer s.op.Unlock()
	if err := s.transition(EdgeBack); err != nil {
		return err
	}
	s.scope = nil
	s.dropped = nil
	return nil
}

// Scope returns the rows of the Resolve step. After FixAndRetry these are
// only the rows that failed.
func (s *Session) Scope() []preview.Entry {
	s.op.Lock()
	defer s.op.Unlock()
	return append([]preview.Entry(nil), s.scope...)
}

// Dropped returns the selected rows withheld by the drop policy.
func (s *Session) Dropped() []preview.Entry {
	s.op.Lock()
	defer s.op.Unlock()
	return append([]preview.Entry(nil), s.dropped...)
}

// Plan asks the backend what committing the Resolve scope would do.
func (s *Session) Plan(ctx context.Context) (model.Plan, error) {
	gen := s.generation()
	s.op.Lock()
	defer s.op.Unlock()

	if s.stale(gen) {
		return model.Plan{}, ErrStale
	}
	if step := s.Step(); step != StepResolve {
		return model.Plan{}, fmt.Errorf("%w: plan from %s", ErrInvalidTransition, step)
	}
	defaults, flags := s.options.SplitOptions()
	req := model.PlanRequest{
		PreviewID: s.store.PreviewID(),
		Indices:   commit.Indices(s.scope),
		Defaults:  defaults,
		Options:   flags,
	}
	var p model.Plan
	err := s.run(ctx, gen, callPlan, func(ctx context.Context) error {
		var err error
		p, err = s.deps.Commits.Plan(ctx, req)
		return err
	})
	return p, err
}

// Commit resolves the scope's names, merges the result with the overrides
// of earlier attempts, and commits the scope. Once the backend answers, the
// session moves to DoneSuccess or DonePartialError. Transport failures leave
// it in Resolve so the commit can be retried.
func (s *Session) Commit(ctx context.Context) (model.CommitResult, error) {
	res, notify, err := s.commit(ctx)
	if err != nil {
		return model.CommitResult{}, err
	}
	if notify != nil {
		notify(res)
	}
	return res, nil
}

func (s *Session) commit(ctx context.Context) (model.CommitResult, func(model.CommitResult), error) {
	gen := s.generation()
	s.op.Lock()
	defer s.op.Unlock()

	if s.stale(gen) {
		return model.CommitResult{}, nil, ErrStale
	}
	if step := s.Step(); step != StepResolve {
		return model.CommitResult{}, nil, fmt.Errorf("%w: commit from %s", ErrInvalidTransition, step)
	}
	if len(s.scope) == 0 {
		return model.CommitResult{}, nil, ErrNoSelection
	}

	var resolved resolve.Result
	err := s.run(ctx, gen, callResolve, func(ctx context.Context) error {
		var err error
		resolved, err = s.deps.Resolver.Resolve(ctx, s.scope, resolve.Params{
			PaymentTypeID: s.options.PaymentTypeID,
			Manual:        s.manual,
		})
		return err
	})
	if err != nil {
		return model.CommitResult{}, nil, fmt.Errorf("resolving names: %w", err)
	}
	if len(resolved.Unresolved) > 0 {
		s.logger.Warn("rows left without catalog ids", "rows", len(resolved.Unresolved))
	}

	overrides := commit.MergeOverrides(s.applied, resolved.Overrides)
	batch := commit.Batch{
		PreviewID: s.store.PreviewID(),
		Entries:   s.scope,
		Options:   s.options,
		Overrides: overrides,
		Attempt:   s.attempt + 1,
	}
	var res model.CommitResult
	err = s.run(ctx, gen, callCommit, func(ctx context.Context) error {
		var err error
		res, err = s.orch.Commit(ctx, batch)
		return err
	})
	if err != nil {
		return model.CommitResult{}, nil, err
	}

	s.attempt = batch.Attempt
	s.applied = overrides
	s.result = res
	edge := EdgeCommitPartial
	if res.Succeeded() {
		edge = EdgeCommitSuccess
	}
	if err := s.transition(edge); err != nil {
		return model.CommitResult{}, nil, err
	}
	if res.Succeeded() {
		return res, s.defaults.OnCommitted, nil
	}
	return res, nil, nil
}

// FixAndRetry re-enters Resolve scoped to the rows whose invoice numbers
// failed in the last commit. Overrides already chosen for those invoices are
// pre-loaded as manual overrides so they can be corrected. Errors that name
// no invoice are left out of the scope and reported by Unkeyed.
func (s *Session) FixAndRetry() error {
	s.op.Lock()
	defer s.op.Unlock()

	if step := s.Step(); step != StepDonePartialError {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, EdgeFixAndRetry, step)
	}
	scope := commit.RetryScope(s.scope, s.result.Errors)
	if len(scope) == 0 {
		return fmt.Errorf("%w: no committed row matches the reported errors", ErrNoSelection)
	}
	for inv, o := range commit.OverridesFor(s.applied, scope) {
		if _, pinned := s.manual[inv]; !pinned {
			s.manual[inv] = o
		}
	}
	if err := s.transition(EdgeFixAndRetry); err != nil {
		return err
	}
	s.scope = scope
	unkeyed := commit.Unkeyed(s.result.Errors)
	s.unkeyed = append(s.unkeyed, unkeyed...)
	if len(unkeyed) > 0 {
		s.logger.Warn("failed rows without invoice number left out of retry", "rows", len(unkeyed))
	}
	s.logger.Info("retrying failed rows", "rows", len(scope), "attempt", s.attempt+1)
	return nil
}

// Unkeyed returns the errors of earlier attempts that named no invoice
// number. Their rows were not retried.
func (s *Session) Unkeyed() []model.RowError {
	s.op.Lock()
	defer s.op.Unlock()
	return append([]model.RowError(nil), s.unkeyed...)
}

// Result returns the outcome of the last commit.
func (s *Session) Result() model.CommitResult {
	s.op.Lock()
	defer s.op.Unlock()
	return s.result
}

// Attempt returns the number of commits answered in this run.
func (s *Session) Attempt() int {
	s.op.Lock()
	defer s.op.Unlock()
	return s.attempt
}

// Overrides returns the overrides sent with the last commit.
func (s *Session) Overrides() []model.Override {
	s.op.Lock()
	defer s.op.Unlock()
	return append([]model.Override(nil), s.applied...)
}
