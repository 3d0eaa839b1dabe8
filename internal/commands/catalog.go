package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/finboard/finboard/internal/catalog"
	"github.com/finboard/finboard/internal/model"
)

func newCatalogCommand(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the account and supplier catalogs",
	}
	cmd.AddCommand(newCatalogAccountsCommand(root))
	cmd.AddCommand(newCatalogSuppliersCommand(root))
	cmd.AddCommand(newCatalogMatchCommand(root))
	return cmd
}

func newCatalogAccountsCommand(root *rootFlags) *cobra.Command {
	var asCSV bool
	var paymentType int

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd, root)
			if err != nil {
				return err
			}
			accts, err := catalog.NewClient(e.apiClient()).ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			if paymentType > 0 {
				accts = inPartition(accts, paymentType)
			}
			if asCSV {
				return catalog.WriteAccounts(e.out, accts)
			}

			tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPAYMENT TYPE")
			for _, a := range accts {
				pt := "-"
				if a.PaymentTypeID != 0 {
					pt = fmt.Sprint(a.PaymentTypeID)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", a.ID, a.Name, pt)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")
	cmd.Flags().IntVar(&paymentType, "payment-type", 0, "only accounts of this payment type")

	return cmd
}

func newCatalogSuppliersCommand(root *rootFlags) *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "suppliers",
		Short: "List suppliers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd, root)
			if err != nil {
				return err
			}
			sups, err := catalog.NewClient(e.apiClient()).ListSuppliers(cmd.Context())
			if err != nil {
				return err
			}
			if asCSV {
				return catalog.WriteSuppliers(e.out, sups)
			}

			tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, s := range sups {
				fmt.Fprintf(tw, "%d\t%s\n", s.ID, s.Name)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")

	return cmd
}

// newCatalogMatchCommand shows which catalog entries a name resolves to,
// using the same normalization as an import.
func newCatalogMatchCommand(root *rootFlags) *cobra.Command {
	var paymentType int

	cmd := &cobra.Command{
		Use:   "match <name>",
		Short: "Show the account and supplier a name resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, root)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("payment-type") {
				paymentType = e.cfg.Import.PaymentTypeID
			}

			c := catalog.NewClient(e.apiClient())
			accts, err := c.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			sups, err := c.ListSuppliers(cmd.Context())
			if err != nil {
				return err
			}

			name := args[0]
			report := func(kind string, idx *catalog.Index) {
				id, ok := idx.Lookup(name)
				if !ok {
					warnColor.Fprintf(e.out, "%-8s no match\n", kind)
					return
				}
				canonical, _ := idx.Name(id)
				okColor.Fprintf(e.out, "%-8s %d %s\n", kind, id, canonical)
			}
			report("account", catalog.NewAccountIndex(accts, paymentType))
			report("supplier", catalog.NewSupplierIndex(sups))
			return nil
		},
	}

	cmd.Flags().IntVar(&paymentType, "payment-type", 0, "account partition (default: config)")

	return cmd
}

func inPartition(accts []model.Account, paymentType int) []model.Account {
	var out []model.Account
	for _, a := range accts {
		if a.PaymentTypeID == paymentType {
			out = append(out, a)
		}
	}
	return out
}
