package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/finboard/finboard/internal/client"
	"github.com/finboard/finboard/internal/commit"
	"github.com/finboard/finboard/internal/importer"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/wizard"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
)

type importFlags struct {
	sheet         string
	rows          []int
	plan          bool
	paymentType   int
	dropUnmatched bool
	accounts      map[string]int
	suppliers     map[string]int
	interactive   bool
	keep          bool
}

func newImportCommand(root *rootFlags) *cobra.Command {
	flags := &importFlags{}

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import expense documents",
		Long: `Upload each file to the import preview, resolve supplier and account
names against the catalog and commit the selected rows.

Without arguments every supported file in the import directory is imported.
Files from the import directory whose rows were all committed are moved
to processed/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, root)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("payment-type") {
				flags.paymentType = -1
			}

			paths := args
			if len(paths) == 0 {
				files, err := importer.Scan(e.cfg.Import.ImportDir)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintf(e.out, "No files to import in %s\n", e.cfg.Import.ImportDir)
					return nil
				}
				for _, f := range files {
					paths = append(paths, f.Path)
				}
			}

			in := bufio.NewScanner(cmd.InOrStdin())
			var errs []error
			for _, p := range paths {
				if err := runImport(cmd.Context(), e, p, flags, in); err != nil {
					failColor.Fprintf(e.out, "✗ %s: %v\n", filepath.Base(p), err)
					errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(p), err))
				}
			}
			return errors.Join(errs...)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.sheet, "sheet", "", "worksheet to read (default: first)")
	f.IntSliceVar(&flags.rows, "rows", nil, "row numbers to import, as shown by preview (default: all)")
	f.BoolVar(&flags.plan, "plan", false, "show what the commit would do without committing")
	f.IntVar(&flags.paymentType, "payment-type", 0, "payment type id for this run (overrides config)")
	f.BoolVar(&flags.dropUnmatched, "drop-unmatched", false, "withhold rows that have no account name")
	f.StringToIntVar(&flags.accounts, "account", nil, "pin an account id for an invoice, e.g. F-100=3")
	f.StringToIntVar(&flags.suppliers, "supplier", nil, "pin a supplier id for an invoice, e.g. F-100=2")
	f.BoolVarP(&flags.interactive, "interactive", "i", false, "prompt for ids of failed rows and retry")
	f.BoolVar(&flags.keep, "keep", false, "leave committed files in the import directory")

	return cmd
}

func runImport(ctx context.Context, e *env, path string, flags *importFlags, in *bufio.Scanner) error {
	name := filepath.Base(path)
	if err := importer.ValidateUpload(name); err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	policy := wizard.UnmatchedPolicy(strings.ToLower(e.cfg.Import.UnmatchedRows))
	if flags.dropUnmatched {
		policy = wizard.UnmatchedDrop
	}
	s := e.newSession(policy)
	defer s.Close()

	handle, err := s.Upload(ctx, name, file, flags.sheet)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Uploaded %s: %d rows (preview %s)\n", name, handle.Count, handle.PreviewID)
	if err := s.FetchPage(ctx, 1); err != nil {
		return err
	}

	if err := selectRows(s, flags.rows); err != nil {
		return err
	}
	if flags.paymentType >= 0 {
		opts := s.Options()
		opts.PaymentTypeID = flags.paymentType
		s.SetOptions(opts)
	}
	for _, o := range pinned(flags.accounts, flags.suppliers) {
		if err := s.SetManualOverride(o); err != nil {
			return err
		}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(e.out),
		progressbar.OptionSetDescription("loading rows"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	err = s.BeginResolve(ctx, func(done, total int) {
		bar.ChangeMax(total)
		_ = bar.Set(done)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	for _, d := range s.Dropped() {
		warnColor.Fprintf(e.out, "! row %d (%s) has no account, skipped\n", d.Index+1, d.Row.InvoiceNumber)
	}

	if flags.plan {
		p, err := s.Plan(ctx)
		if err != nil {
			return err
		}
		printPlan(e.out, p)
		return nil
	}

	for round := 0; ; round++ {
		res, err := commitOnce(ctx, s)
		if err != nil {
			return err
		}
		printResult(e.out, res)
		if res.Succeeded() {
			break
		}
		if !flags.interactive || round >= e.cfg.Import.MaxRetries {
			return fmt.Errorf("%d rows failed", len(res.Errors))
		}
		if err := s.FixAndRetry(); err != nil {
			return err
		}
		if n := len(commit.Unkeyed(res.Errors)); n > 0 {
			warnColor.Fprintf(e.out, "! %d failed rows have no invoice number and are not retried; fix them in the file\n", n)
		}
		if err := promptOverrides(e.out, in, s); err != nil {
			return err
		}
	}

	complete := len(flags.rows) == 0 && len(s.Dropped()) == 0 && len(s.Unkeyed()) == 0
	if complete && !flags.keep && sameDir(filepath.Dir(path), e.cfg.Import.ImportDir) {
		if err := importer.MarkProcessed(e.cfg.Import.ImportDir, name); err != nil {
			return err
		}
	}
	return nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// selectRows selects the 1-based row numbers, or every row when none are given.
func selectRows(s *wizard.Session, rows []int) error {
	if len(rows) == 0 {
		return s.SelectAll()
	}
	total := s.Total()
	for _, n := range rows {
		if n < 1 || n > total {
			return fmt.Errorf("row %d out of range 1..%d", n, total)
		}
		if s.IsSelected(n - 1) {
			continue
		}
		if err := s.Toggle(n - 1); err != nil {
			return err
		}
	}
	return nil
}

// pinned merges --account and --supplier flags into overrides per invoice.
func pinned(accounts, suppliers map[string]int) []model.Override {
	byInvoice := map[string]*model.Override{}
	var order []string
	get := func(inv string) *model.Override {
		o, ok := byInvoice[inv]
		if !ok {
			o = &model.Override{InvoiceNumber: inv}
			byInvoice[inv] = o
			order = append(order, inv)
		}
		return o
	}
	for inv, id := range accounts {
		get(inv).AccountID = id
	}
	for inv, id := range suppliers {
		get(inv).SupplierID = id
	}
	out := make([]model.Override, 0, len(order))
	for _, inv := range order {
		out = append(out, *byInvoice[inv])
	}
	return out
}

// errCommitUnconfirmed reports a commit whose outcome is unknown. The
// request may have been applied, so it is never sent again automatically.
var errCommitUnconfirmed = errors.New("commit not confirmed, the rows may have been applied; check the backend before importing again")

// commitOnce sends the commit exactly once.
func commitOnce(ctx context.Context, s *wizard.Session) (model.CommitResult, error) {
	res, err := s.Commit(ctx)
	if err != nil && client.IsTransport(err) {
		return model.CommitResult{}, fmt.Errorf("%w: %w", errCommitUnconfirmed, err)
	}
	return res, err
}

// promptOverrides asks for account and supplier ids of the rows in the retry
// scope. Blank answers keep the current value.
func promptOverrides(w io.Writer, in *bufio.Scanner, s *wizard.Session) error {
	manual := s.ManualOverrides()
	reasons := map[string]string{}
	for _, re := range s.Result().Errors {
		reasons[re.InvoiceNumber] = re.Reason
	}
	for _, entry := range s.Scope() {
		inv := entry.Row.InvoiceNumber
		o := manual[inv]
		o.InvoiceNumber = inv
		fmt.Fprintf(w, "%s (%s)\n", inv, reasons[inv])

		var err error
		if o.AccountID, err = promptID(w, in, "  account id", o.AccountID); err != nil {
			return err
		}
		if o.SupplierID, err = promptID(w, in, "  supplier id", o.SupplierID); err != nil {
			return err
		}
		if err := s.SetManualOverride(o); err != nil {
			return err
		}
	}
	return nil
}

func promptID(w io.Writer, in *bufio.Scanner, label string, current int) (int, error) {
	for {
		if current > 0 {
			fmt.Fprintf(w, "%s [%d]: ", label, current)
		} else {
			fmt.Fprintf(w, "%s: ", label)
		}
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return 0, fmt.Errorf("reading input: %w", err)
			}
			return current, nil
		}
		text := strings.TrimSpace(in.Text())
		if text == "" {
			return current, nil
		}
		id, err := strconv.Atoi(text)
		if err == nil && id > 0 {
			return id, nil
		}
		fmt.Fprintf(w, "  %q is not an id\n", text)
	}
}

func printResult(w io.Writer, res model.CommitResult) {
	if res.Succeeded() {
		okColor.Fprintf(w, "✓ %s\n", commit.Summary(res))
		return
	}
	warnColor.Fprintf(w, "! %s\n", commit.Summary(res))
	for _, re := range res.Errors {
		failColor.Fprintf(w, "  ✗ %s: %s\n", re.InvoiceNumber, re.Reason)
	}
}

func printPlan(w io.Writer, p model.Plan) {
	fmt.Fprintf(w, "Plan: %d to create, %d to update, %d rejected\n", p.Creates, p.Updates, p.Rejects)
	for _, r := range p.Rows {
		switch r.Action {
		case model.PlanReject:
			failColor.Fprintf(w, "  %4d  %-12s %s (%s)\n", r.Index+1, r.InvoiceNumber, r.Action, r.Reason)
		default:
			fmt.Fprintf(w, "  %4d  %-12s %s\n", r.Index+1, r.InvoiceNumber, r.Action)
		}
	}
}
