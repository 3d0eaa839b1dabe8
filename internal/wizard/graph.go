package wizard

import "fmt"

// Step is a state of the import wizard.
type Step int

const (
	StepUpload Step = iota
	StepPreview
	StepResolve
	StepDoneSuccess
	StepDonePartialError
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepPreview:
		return "preview"
	case StepResolve:
		return "resolve"
	case StepDoneSuccess:
		return "done-success"
	case StepDonePartialError:
		return "done-partial-error"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Done reports whether s is one of the terminal sub-states.
func (s Step) Done() bool {
	return s == StepDoneSuccess || s == StepDonePartialError
}

// Edge names one allowed transition.
type Edge struct {
	Name string
	From Step
	To   Step
}

// Edge names.
const (
	EdgeUpload        = "upload"
	EdgeReplaceFile   = "replace-file"
	EdgeResolve       = "resolve"
	EdgeBack          = "back"
	EdgeCommitSuccess = "commit-success"
	EdgeCommitPartial = "commit-partial"
	EdgeFixAndRetry   = "fix-and-retry"
)

// edges is the complete transition graph. The forward path runs
// upload -> resolve -> commit-*; fix-and-retry is the only edge leaving Done.
var edges = []Edge{
	{EdgeUpload, StepUpload, StepPreview},
	{EdgeReplaceFile, StepPreview, StepUpload},
	{EdgeResolve, StepPreview, StepResolve},
	{EdgeBack, StepResolve, StepPreview},
	{EdgeCommitSuccess, StepResolve, StepDoneSuccess},
	{EdgeCommitPartial, StepResolve, StepDonePartialError},
	{EdgeFixAndRetry, StepDonePartialError, StepResolve},
}

// Edges returns a copy of the transition graph.
func Edges() []Edge {
	return append([]Edge(nil), edges...)
}

// next returns the target of the named edge leaving from.
func next(from Step, name string) (Step, error) {
	for _, e := range edges {
		if e.From == from && e.Name == name {
			return e.To, nil
		}
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, name, from)
}
