package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finboard/finboard/internal/catalog"
	"github.com/finboard/finboard/internal/importer"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(root *rootFlags) *cobra.Command {
	var addr string
	var accountsFile string
	var suppliersFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory finance backend for local imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd, root)
			if err != nil {
				return err
			}
			if addr != "" {
				e.cfg.Server.Addr = addr
			}

			accts, sups, err := seedCatalog(accountsFile, suppliersFile)
			if err != nil {
				return err
			}
			srv := server.New(server.NewStore(accts, sups), importer.DefaultRegistry(), e.logger)

			ln, err := net.Listen("tcp", e.cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", e.cfg.Server.Addr, err)
			}
			fmt.Fprintf(e.out, "Serving finance API on http://%s/api/\n", ln.Addr())
			return serve(cmd.Context(), srv, ln, e)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().StringVar(&accountsFile, "accounts", "", "accounts CSV to seed the catalog (id,name,payment_type_id)")
	cmd.Flags().StringVar(&suppliersFile, "suppliers", "", "suppliers CSV to seed the catalog (id,name)")

	return cmd
}

// serve runs the backend on ln until ctx is canceled.
func serve(ctx context.Context, srv *server.Server, ln net.Listener, e *env) error {
	janitor, err := srv.StartJanitor(e.cfg.Server.Sweep, e.cfg.Server.PreviewTTL)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer janitor.Stop()

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// seedCatalog reads the seed CSVs, falling back to the built-in catalog for
// any file not given.
func seedCatalog(accountsFile, suppliersFile string) ([]model.Account, []model.Supplier, error) {
	accts := catalog.DefaultAccounts()
	sups := catalog.DefaultSuppliers()

	if accountsFile != "" {
		f, err := os.Open(accountsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("opening accounts: %w", err)
		}
		defer f.Close()
		if accts, err = catalog.ReadAccounts(f); err != nil {
			return nil, nil, err
		}
	}
	if suppliersFile != "" {
		f, err := os.Open(suppliersFile)
		if err != nil {
			return nil, nil, fmt.Errorf("opening suppliers: %w", err)
		}
		defer f.Close()
		if sups, err = catalog.ReadSuppliers(f); err != nil {
			return nil, nil, err
		}
	}
	return accts, sups, nil
}
