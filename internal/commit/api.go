// Package commit sends resolved preview rows to the import-commit endpoint
// and narrows the batch for a fix-and-retry pass after a partial failure.
package commit

import (
	"context"
	"fmt"

	"github.com/finboard/finboard/internal/client"
	"github.com/finboard/finboard/internal/model"
)

// API talks to the import-commit and import-plan endpoints.
type API struct {
	api *client.Client
}

// NewAPI creates a commit API.
func NewAPI(api *client.Client) *API {
	return &API{api: api}
}

// Commit persists the selected rows. Per-row failures come back in the
// result, not as an error.
func (a *API) Commit(ctx context.Context, req model.CommitRequest) (model.CommitResult, error) {
	var res model.CommitResult
	if err := a.api.PostJSON(ctx, "import-commit", req, &res); err != nil {
		return model.CommitResult{}, fmt.Errorf("committing preview %s: %w", req.PreviewID, err)
	}
	return res, nil
}

// Plan asks what a commit of the selected rows would do without applying it.
func (a *API) Plan(ctx context.Context, req model.PlanRequest) (model.Plan, error) {
	var p model.Plan
	if err := a.api.PostJSON(ctx, "import-plan", req, &p); err != nil {
		return model.Plan{}, fmt.Errorf("planning preview %s: %w", req.PreviewID, err)
	}
	return p, nil
}
