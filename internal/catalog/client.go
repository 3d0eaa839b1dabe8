package catalog

import (
	"context"
	"fmt"

	"github.com/finboard/finboard/internal/client"
	"github.com/finboard/finboard/internal/model"
)

// Client lists and creates accounts and suppliers on the backend.
// Create calls mutate server state; callers must not repeat them for the same entity.
type Client struct {
	api *client.Client
}

// NewClient creates a catalog Client.
func NewClient(api *client.Client) *Client {
	return &Client{api: api}
}

// ListAccounts returns every account.
func (c *Client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var accts []model.Account
	if err := c.api.GetJSON(ctx, "accounts", nil, &accts); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return accts, nil
}

// ListSuppliers returns every supplier.
func (c *Client) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	var sups []model.Supplier
	if err := c.api.GetJSON(ctx, "suppliers", nil, &sups); err != nil {
		return nil, fmt.Errorf("listing suppliers: %w", err)
	}
	return sups, nil
}

// CreateAccount creates an account in the given payment-type partition.
func (c *Client) CreateAccount(ctx context.Context, acct model.NewAccount) (model.Account, error) {
	var created model.Account
	if err := c.api.PostJSON(ctx, "accounts", acct, &created); err != nil {
		return model.Account{}, fmt.Errorf("creating account %q: %w", acct.Name, err)
	}
	return created, nil
}

// CreateSupplier creates a supplier.
func (c *Client) CreateSupplier(ctx context.Context, sup model.NewSupplier) (model.Supplier, error) {
	var created model.Supplier
	if err := c.api.PostJSON(ctx, "suppliers", sup, &created); err != nil {
		return model.Supplier{}, fmt.Errorf("creating supplier %q: %w", sup.Name, err)
	}
	return created, nil
}
