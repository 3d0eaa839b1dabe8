package importlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard/finboard/internal/model"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:     testTime,
		PreviewID:     "abc",
		Attempt:       1,
		InvoiceNumber: "F-100",
		Outcome:       OutcomeRejected,
		Details:       "missing account",
	}
}

func TestAppend_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "import-log.csv")
	require.NoError(t, Append(path, []Entry{testEntry()}))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "F-100", entries[0].InvoiceNumber)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), Header+"\n")
}

func TestAppend_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import-log.csv")
	require.NoError(t, Append(path, []Entry{testEntry()}))

	e2 := testEntry()
	e2.Attempt = 2
	e2.Outcome = OutcomeApplied
	e2.Details = ""
	require.NoError(t, Append(path, []Entry{e2}))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Attempt)
	assert.Equal(t, 2, entries[1].Attempt)
	assert.Equal(t, OutcomeApplied, entries[1].Outcome)
}

func TestRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import-log.csv")
	original := testEntry()
	original.Details = `reason with "quotes", and commas`
	require.NoError(t, Append(path, []Entry{original}))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, original.PreviewID, got.PreviewID)
	assert.Equal(t, original.Attempt, got.Attempt)
	assert.Equal(t, original.InvoiceNumber, got.InvoiceNumber)
	assert.Equal(t, original.Outcome, got.Outcome)
	assert.Equal(t, original.Details, got.Details)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_BadAttempt(t *testing.T) {
	row := MarshalEntry(testEntry())
	row[colAttempt] = "first"
	_, err := UnmarshalEntry(row)
	assert.Error(t, err)
}

func TestFromResult(t *testing.T) {
	res := model.CommitResult{
		Created: 2,
		Errors: []model.RowError{
			{InvoiceNumber: "F-2", Reason: "missing account"},
			{InvoiceNumber: "F-2", Reason: "negative amount"},
			{InvoiceNumber: "F-9", Reason: "unknown row"},
		},
	}
	entries := FromResult(testTime, "abc", 1, []string{"F-1", "F-2", "F-1", "F-3"}, res)

	require.Len(t, entries, 4)
	assert.Equal(t, "F-1", entries[0].InvoiceNumber)
	assert.Equal(t, OutcomeApplied, entries[0].Outcome)
	assert.Equal(t, OutcomeRejected, entries[1].Outcome)
	assert.Equal(t, "missing account; negative amount", entries[1].Details)
	assert.Equal(t, "F-3", entries[2].InvoiceNumber)
	assert.Equal(t, "F-9", entries[3].InvoiceNumber)
	assert.Equal(t, OutcomeRejected, entries[3].Outcome)
}

func TestWriter_Record(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "import-log.csv")
	w := NewWriter(path)
	w.now = func() time.Time { return testTime }

	require.NoError(t, w.Record("abc", 1, []string{"F-1"}, model.CommitResult{Created: 1}))

	entries, err := Read(w.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].PreviewID)
	assert.True(t, testTime.Equal(entries[0].Timestamp))
}
