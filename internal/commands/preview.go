package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/finboard/finboard/internal/importer"
	"github.com/finboard/finboard/internal/wizard"
)

func newPreviewCommand(root *rootFlags) *cobra.Command {
	var sheet string
	var page int

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show the parsed rows of a document without importing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, root)
			if err != nil {
				return err
			}

			path := args[0]
			name := filepath.Base(path)
			if err := importer.ValidateUpload(name); err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			defer file.Close()

			s := e.newSession(wizard.UnmatchedInclude)
			defer s.Close()

			ctx := cmd.Context()
			if _, err := s.Upload(ctx, name, file, sheet); err != nil {
				return err
			}
			if err := s.FetchPage(ctx, page); err != nil {
				return err
			}
			printRows(e.out, s)
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet to read (default: first)")
	cmd.Flags().IntVar(&page, "page", 1, "page to show")

	return cmd
}

func printRows(w io.Writer, s *wizard.Session) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tINVOICE\tSUPPLIER\tACCOUNT\tAMOUNT\tLINES\tPAID ON")
	for _, r := range s.VisibleRows() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Index+1, r.InvoiceNumber, r.Supplier, dash(r.AccountName),
			r.Amount.StringFixed(2), len(r.Lines), dash(r.LastPaymentDate))
	}
	_ = tw.Flush()

	page, pages := s.Page()
	fmt.Fprintf(w, "page %d of %d, %d rows\n", page, pages, s.Total())
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
