// Package preview pages through the rows parsed from an uploaded document.
package preview

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/finboard/finboard/internal/client"
	"github.com/finboard/finboard/internal/model"
)

// API talks to the import-preview endpoints.
type API struct {
	api *client.Client
}

// NewAPI creates a preview API.
func NewAPI(api *client.Client) *API {
	return &API{api: api}
}

// Upload sends a document for parsing and returns the preview handle.
// An empty sheet lets the backend pick the first sheet.
func (a *API) Upload(ctx context.Context, fileName string, r io.Reader, sheet string) (model.PreviewHandle, error) {
	fields := map[string]string{}
	if sheet != "" {
		fields["sheet"] = sheet
	}
	var h model.PreviewHandle
	if err := a.api.Upload(ctx, "import-preview", fileName, r, fields, &h); err != nil {
		return model.PreviewHandle{}, fmt.Errorf("uploading %s: %w", fileName, err)
	}
	return h, nil
}

// FetchPage returns one page of preview rows.
func (a *API) FetchPage(ctx context.Context, previewID string, page, size int) (model.PreviewPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var p model.PreviewPage
	if err := a.api.GetJSON(ctx, "import-preview/"+url.PathEscape(previewID), q, &p); err != nil {
		return model.PreviewPage{}, fmt.Errorf("fetching preview page %d: %w", page, err)
	}
	return p, nil
}
