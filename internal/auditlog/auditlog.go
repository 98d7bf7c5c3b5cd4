// Package auditlog appends every committed ledger mutation to
// logs/audit-log.csv under the ledger home directory.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp time.Time
	Actor     string
	Action    string
	Details   string
	AccountID string
	EntryID   string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,actor,action,details,account_id,entry_id"

const (
	numFields    = 6
	logDir       = "logs"
	logFile      = "audit-log.csv"
	colTimestamp = 0
	colActor     = 1
	colAction    = 2
	colDetails   = 3
	colAccountID = 4
	colEntryID   = 5
)

// Actions written by the ledger.
const (
	ActionAccountAdd     = "account_add"
	ActionAccountUpdate  = "account_update"
	ActionAccountDelete  = "account_delete"
	ActionPost           = "post_transactions"
	ActionJournalAdd     = "journal_add"
	ActionJournalStatus  = "journal_status"
	ActionTreasuryAdd    = "treasury_add"
	ActionTreasuryDelete = "treasury_delete"
	ActionSupplierAdd    = "supplier_add"
	ActionSupplierDelete = "supplier_delete"
	ActionYearClose      = "year_close"
	ActionYearReopen     = "year_reopen"
	ActionImport         = "chart_import"
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colDetails] = e.Details
	row[colAccountID] = e.AccountID
	row[colEntryID] = e.EntryID
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

	return Entry{
		Timestamp: ts,
		Actor:     record[colActor],
		Action:    record[colAction],
		Details:   record[colDetails],
		AccountID: record[colAccountID],
		EntryID:   record[colEntryID],
	}, nil
}

// Log appends to one audit file. Safe for concurrent use.
type Log struct {
	path  string
	actor string
	now   func() time.Time
	mu    sync.Mutex
}

// Open returns the audit log under home, recording actor on every row.
func Open(home, actor string) *Log {
	return &Log{
		path:  filepath.Join(home, logDir, logFile),
		actor: actor,
		now:   time.Now,
	}
}

// Path is the location of the CSV file.
func (l *Log) Path() string {
	return l.path
}

// Record appends one row stamped with the current time and the log's actor.
func (l *Log) Record(action, details, accountID, entryID string) error {
	return l.Append([]Entry{{
		Timestamp: l.now(),
		Actor:     l.actor,
		Action:    action,
		Details:   details,
		AccountID: accountID,
		EntryID:   entryID,
	}})
}

// Append writes entries, creating the file and header if needed.
func (l *Log) Append(entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
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

// Read returns all entries. A missing file yields no entries.
func (l *Log) Read() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
