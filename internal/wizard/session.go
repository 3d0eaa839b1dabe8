// Package wizard sequences a bulk expense import: upload a document, page
// through and select the parsed rows, resolve supplier and account names,
// commit, and loop back over the rows that failed.
//
// A Session owns every store of one run. Its methods are safe for concurrent
// use: operations are serialized, and Close or a file replacement aborts the
// operation in progress instead of waiting for its network call.
package wizard

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/finboard/finboard/internal/commit"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/preview"
	"github.com/finboard/finboard/internal/resolve"
	"github.com/finboard/finboard/internal/selection"
)

var (
	// ErrNoFile is returned when an operation needs an uploaded document.
	ErrNoFile = errors.New("no file uploaded")
	// ErrNoSelection is returned when no row is selected for import.
	ErrNoSelection = errors.New("no rows selected")
	// ErrInvalidTransition is returned when an operation is not allowed in the current step.
	ErrInvalidTransition = errors.New("invalid wizard transition")
	// ErrStale is returned by a call that was aborted by Close, a file
	// replacement or a newer call of the same kind. Its response was discarded.
	ErrStale = errors.New("request superseded")
	// ErrRowsNotLoaded is returned when the backend did not serve every
	// selected row, so resolving would silently skip some of them.
	ErrRowsNotLoaded = errors.New("selected rows not loaded")
)

// UnmatchedPolicy decides what happens to selected rows that have neither an
// account name nor a manual account id.
type UnmatchedPolicy string

const (
	// UnmatchedInclude sends such rows and lets the backend decide.
	UnmatchedInclude UnmatchedPolicy = "include"
	// UnmatchedDrop withholds them from the commit; see Session.Dropped.
	UnmatchedDrop UnmatchedPolicy = "drop"
)

// PreviewAPI uploads documents and pages through their parsed rows.
type PreviewAPI interface {
	Upload(ctx context.Context, fileName string, r io.Reader, sheet string) (model.PreviewHandle, error)
	preview.Fetcher
}

// Resolver maps row names to catalog ids.
type Resolver interface {
	Resolve(ctx context.Context, entries []preview.Entry, p resolve.Params) (resolve.Result, error)
}

// CommitAPI persists and plans batches.
type CommitAPI interface {
	commit.Committer
	Plan(ctx context.Context, req model.PlanRequest) (model.Plan, error)
}

// Deps are the collaborators of a Session.
type Deps struct {
	Preview  PreviewAPI
	Resolver Resolver
	Commits  CommitAPI
	Recorder commit.Recorder // optional
	Logger   *log.Logger     // optional
}

// Options are the initial settings of a Session. Close restores them.
type Options struct {
	PageSize  int
	Commit    model.CommitOptions
	Unmatched UnmatchedPolicy
	// OnCommitted is called after a fully successful commit so the parent
	// view can refresh its own data.
	OnCommitted func(model.CommitResult)
}

type callKind int

const (
	callUpload callKind = iota
	callPage
	callLoad
	callResolve
	callCommit
	callPlan
)

type call struct {
	kind    callKind
	cancel  context.CancelFunc
	aborted bool
}

// Session is one run of the import wizard.
type Session struct {
	deps     Deps
	defaults Options
	logger   *log.Logger
	orch     *commit.Orchestrator

	// op serializes operations; every field below it is guarded by op.
	op       sync.Mutex
	fileName string
	store    *preview.Store
	sel      *selection.Set
	options  model.CommitOptions
	manual   map[string]model.Override
	applied  []model.Override // overrides sent with the last commit
	scope    []preview.Entry  // rows of the Resolve step
	dropped  []preview.Entry
	unkeyed  []model.RowError // errors left out of a retry scope
	result   model.CommitResult
	attempt  int

	// mu guards the step and the in-flight call registry.
	mu     sync.Mutex
	step   Step
	gen    uint64
	nextID uint64
	calls  map[uint64]*call
}

// NewSession creates a Session in the Upload step.
func NewSession(deps Deps, opts Options) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = preview.DefaultPageSize
	}
	if opts.Unmatched == "" {
		opts.Unmatched = UnmatchedInclude
	}
	s := &Session{
		deps:     deps,
		defaults: opts,
		logger:   logger,
		orch:     commit.NewOrchestrator(deps.Commits, deps.Recorder, logger),
		calls:    make(map[uint64]*call),
	}
	s.reset()
	return s
}

// reset restores a fresh Upload step. Callers hold op.
func (s *Session) reset() {
	s.fileName = ""
	s.store = nil
	s.sel = selection.New(0)
	s.options = s.defaults.Commit
	s.clearRun()
	s.setStep(StepUpload)
}

// clearRun forgets everything derived from the current document except
// options. Callers hold op.
func (s *Session) clearRun() {
	s.manual = make(map[string]model.Override)
	s.applied = nil
	s.scope = nil
	s.dropped = nil
	s.unkeyed = nil
	s.result = model.CommitResult{}
	s.attempt = 0
}

func (s *Session) setStep(step Step) {
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
}

// transition follows the named edge from the current step. Callers hold op.
func (s *Session) transition(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	to, err := next(s.step, name)
	if err != nil {
		return err
	}
	s.logger.Debug("wizard transition", "edge", name, "from", s.step, "to", to)
	s.step = to
	return nil
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// supersede aborts every in-flight call and invalidates responses still on
// their way. It returns the new generation.
func (s *Session) supersede() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	for _, c := range s.calls {
		c.aborted = true
		c.cancel()
	}
	return s.gen
}

// generation returns the current generation. Operations read it before
// waiting on op, so a supersede while they wait is detected.
func (s *Session) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// stale reports whether the session was superseded since gen was read.
func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

// abort cancels the in-flight calls of one kind.
func (s *Session) abort(kind callKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.kind == kind {
			c.aborted = true
			c.cancel()
		}
	}
}

// run executes fn under a tracked, cancellable context. gen is the
// generation the calling operation started in. run returns ErrStale without
// calling fn when the session has moved on, and discards the result when the
// call was aborted or the session moved on while it ran.
func (s *Session) run(ctx context.Context, gen uint64, kind callKind, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrStale
	}
	s.nextID++
	id := s.nextID
	c := &call{kind: kind, cancel: cancel}
	s.calls[id] = c
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	delete(s.calls, id)
	stale := c.aborted || s.gen != gen
	s.mu.Unlock()

	if stale {
		return ErrStale
	}
	return err
}

// InFlight returns the number of network calls currently running.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Close aborts every in-flight call and resets the session to a fresh Upload
// step. Nothing of the run survives, including options.
func (s *Session) Close() {
	s.supersede()
	s.op.Lock()
	defer s.op.Unlock()
	s.reset()
	s.logger.Debug("wizard closed")
}
