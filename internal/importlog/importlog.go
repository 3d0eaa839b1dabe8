// Package importlog keeps an append-only CSV record of commit attempts.
package importlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/finboard/finboard/internal/model"
)

// Outcome values recorded per invoice.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
)

// DefaultPath is the import log location relative to the working directory.
const DefaultPath = "logs/import-log.csv"

// Entry is one row in the import log.
type Entry struct {
	Timestamp     time.Time
	PreviewID     string
	Attempt       int
	InvoiceNumber string
	Outcome       string
	Details       string
}

// Header is the CSV header for import-log.csv.
const Header = "timestamp,preview_id,attempt,invoice_number,outcome,details"

const (
	numFields        = 6
	colTimestamp     = 0
	colPreviewID     = 1
	colAttempt       = 2
	colInvoiceNumber = 3
	colOutcome       = 4
	colDetails       = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colPreviewID] = e.PreviewID
	row[colAttempt] = strconv.Itoa(e.Attempt)
	row[colInvoiceNumber] = e.InvoiceNumber
	row[colOutcome] = e.Outcome
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	attempt, err := strconv.Atoi(record[colAttempt])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing attempt %q: %w", record[colAttempt], err)
	}

	return Entry{
		Timestamp:     ts,
		PreviewID:     record[colPreviewID],
		Attempt:       attempt,
		InvoiceNumber: record[colInvoiceNumber],
		Outcome:       record[colOutcome],
		Details:       record[colDetails],
	}, nil
}

// FromResult builds one entry per distinct invoice of a committed batch.
// Invoices reported in res.Errors are rejected, the rest applied.
func FromResult(ts time.Time, previewID string, attempt int, invoices []string, res model.CommitResult) []Entry {
	reasons := make(map[string]string, len(res.Errors))
	for _, e := range res.Errors {
		if prev, ok := reasons[e.InvoiceNumber]; ok {
			reasons[e.InvoiceNumber] = prev + "; " + e.Reason
			continue
		}
		reasons[e.InvoiceNumber] = e.Reason
	}

	seen := make(map[string]bool)
	var entries []Entry
	add := func(inv, outcome, details string) {
		entries = append(entries, Entry{
			Timestamp:     ts,
			PreviewID:     previewID,
			Attempt:       attempt,
			InvoiceNumber: inv,
			Outcome:       outcome,
			Details:       details,
		})
	}
	for _, inv := range invoices {
		if seen[inv] {
			continue
		}
		seen[inv] = true
		if reason, ok := reasons[inv]; ok {
			add(inv, OutcomeRejected, reason)
		} else {
			add(inv, OutcomeApplied, "")
		}
	}

	// Errors for invoices the caller did not list still get recorded.
	var extra []string
	for inv := range reasons {
		if !seen[inv] {
			extra = append(extra, inv)
		}
	}
	sort.Strings(extra)
	for _, inv := range extra {
		add(inv, OutcomeRejected, reasons[inv])
	}
	return entries
}

// Append writes entries to path, creating the file, its directory and the header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from path.
// Returns an empty slice if the file does not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading import log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Writer appends commit attempts to one log file.
type Writer struct {
	path string
	now  func() time.Time
}

// NewWriter creates a Writer for path.
func NewWriter(path string) *Writer {
	return &Writer{path: path, now: time.Now}
}

// Path returns the log file location.
func (w *Writer) Path() string { return w.path }

// Record appends the outcome of one commit attempt.
func (w *Writer) Record(previewID string, attempt int, invoices []string, res model.CommitResult) error {
	return Append(w.path, FromResult(w.now().UTC(), previewID, attempt, invoices, res))
}
