package commands

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard/finboard/internal/catalog"
	"github.com/finboard/finboard/internal/config"
	"github.com/finboard/finboard/internal/importer"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/server"
)

func TestSeedCatalog_Defaults(t *testing.T) {
	accts, sups, err := seedCatalog("", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultAccounts(), accts)
	assert.Equal(t, catalog.DefaultSuppliers(), sups)
}

func TestSeedCatalog_FromCSV(t *testing.T) {
	dir := t.TempDir()
	accountsFile := filepath.Join(dir, "accounts.csv")
	require.NoError(t, os.WriteFile(accountsFile, []byte("id,name,payment_type_id\n10,Rent,1\n11,Fuel,\n"), 0o644))

	accts, sups, err := seedCatalog(accountsFile, "")
	require.NoError(t, err)
	assert.Equal(t, []model.Account{
		{ID: 10, Name: "Rent", PaymentTypeID: 1},
		{ID: 11, Name: "Fuel"},
	}, accts)
	assert.Equal(t, catalog.DefaultSuppliers(), sups)

	_, _, err = seedCatalog("", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := config.Default()
	e := &env{cfg: cfg, logger: log.New(io.Discard), out: io.Discard}
	srv := server.New(server.NewStore(catalog.DefaultAccounts(), catalog.DefaultSuppliers()),
		importer.DefaultRegistry(), e.logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, e) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/suppliers")
	require.NoError(t, err)
	var sups []model.Supplier
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sups))
	resp.Body.Close()
	assert.Len(t, sups, len(catalog.DefaultSuppliers()))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_BadSweepSpec(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Sweep = "every now and then"
	e := &env{cfg: cfg, logger: log.New(io.Discard), out: io.Discard}
	srv := server.New(server.NewStore(nil, nil), importer.DefaultRegistry(), e.logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	err = serve(context.Background(), srv, ln, e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduling preview expiry")
}

func TestWithin(t *testing.T) {
	assert.Equal(t, filepath.Join("ws", "import"), within("ws", "import"))
	assert.Equal(t, "/abs/import", within("ws", "/abs/import"))
	assert.Equal(t, "", within("ws", ""))
}

func TestPinned(t *testing.T) {
	got := pinned(map[string]int{"F-1": 3}, map[string]int{"F-1": 2, "F-2": 5})
	byInvoice := map[string]model.Override{}
	for _, o := range got {
		byInvoice[o.InvoiceNumber] = o
	}
	assert.Len(t, got, 2)
	assert.Equal(t, model.Override{InvoiceNumber: "F-1", AccountID: 3, SupplierID: 2}, byInvoice["F-1"])
	assert.Equal(t, model.Override{InvoiceNumber: "F-2", SupplierID: 5}, byInvoice["F-2"])
}
