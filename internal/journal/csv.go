package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolpaypro/ledger/internal/model"
)

// Header is the CSV header for journal exports. One row per line.
const Header = "entry_id,date,fiscal_year,status,description,account_id,debit,credit,note"

const (
	numFields  = 9
	dateFormat = "2006-01-02"
	colEntryID = 0
	colDate    = 1
	colYear    = 2
	colStatus  = 3
	colDesc    = 4
	colAcctID  = 5
	colDebit   = 6
	colCredit  = 7
	colNote    = 8
)

// WriteEntries writes entries as CSV, one row per line (including header).
func WriteEntries(w io.Writer, entries []model.JournalEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 2
	for _, e := range entries {
		for _, l := range e.Lines {
			if err := cw.Write(marshalLine(e, l)); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadEntries reads a journal CSV export. Consecutive rows with the same
// entry_id form one entry.
func ReadEntries(r io.Reader) ([]model.JournalEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var entries []model.JournalEntry
	for i, rec := range records[1:] {
		e, l, err := unmarshalLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if n := len(entries); n > 0 && entries[n-1].ID == e.ID {
			entries[n-1].Lines = append(entries[n-1].Lines, l)
			continue
		}
		e.Lines = []model.JournalLine{l}
		entries = append(entries, e)
	}
	for i := range entries {
		entries[i].ComputeTotals()
	}
	return entries, nil
}

func marshalLine(e model.JournalEntry, l model.JournalLine) []string {
	row := make([]string, numFields)
	row[colEntryID] = e.ID
	row[colDate] = e.Date.Format(dateFormat)
	row[colYear] = e.FiscalYear
	row[colStatus] = string(e.Status)
	row[colDesc] = e.Description
	row[colAcctID] = l.AccountID
	row[colDebit] = formatAmount(l.Debit)
	row[colCredit] = formatAmount(l.Credit)
	row[colNote] = l.Note
	return row
}

func unmarshalLine(record []string) (model.JournalEntry, model.JournalLine, error) {
	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.JournalEntry{}, model.JournalLine{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	debit, err := parseAmount(record[colDebit])
	if err != nil {
		return model.JournalEntry{}, model.JournalLine{}, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
	}
	credit, err := parseAmount(record[colCredit])
	if err != nil {
		return model.JournalEntry{}, model.JournalLine{}, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
	}

	e := model.JournalEntry{
		ID:          record[colEntryID],
		Date:        date,
		FiscalYear:  record[colYear],
		Status:      model.EntryStatus(record[colStatus]),
		Description: record[colDesc],
	}
	l := model.JournalLine{
		AccountID: record[colAcctID],
		Debit:     debit,
		Credit:    credit,
		Note:      record[colNote],
	}
	return e, l, nil
}

func formatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
