package journal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolpaypro/ledger/internal/id"
	"github.com/schoolpaypro/ledger/internal/model"
)

var (
	// ErrEntryNotFound is returned when a journal entry ID does not resolve.
	ErrEntryNotFound = errors.New("journal entry not found")

	// ErrDuplicateEntry is returned when appending an entry whose ID exists.
	ErrDuplicateEntry = errors.New("duplicate journal entry id")

	// ErrInvalidTransition is returned for a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid journal status transition")

	// ErrInvalidEntry wraps the invariant violations of a rejected entry.
	ErrInvalidEntry = errors.New("invalid journal entry")
)

var transitions = map[model.EntryStatus][]model.EntryStatus{
	model.StatusDraft:    {model.StatusApproved, model.StatusRejected},
	model.StatusApproved: {model.StatusPosted, model.StatusRejected},
}

// Log is the ordered, append-only journal. Entries are never removed; only
// their status moves forward.
type Log struct {
	entries  []model.JournalEntry
	byID     map[string]int
	accounts AccountChecker
}

// NewLog creates a Log over existing entries. accounts may be nil to skip
// account reference checks.
func NewLog(entries []model.JournalEntry, accounts AccountChecker) *Log {
	l := &Log{accounts: accounts}
	l.Replace(entries)
	return l
}

// Replace swaps the whole log, as done after re-reading it from storage.
func (l *Log) Replace(entries []model.JournalEntry) {
	l.entries = append([]model.JournalEntry(nil), entries...)
	l.byID = make(map[string]int, len(entries))
	for i, e := range l.entries {
		l.byID[e.ID] = i
	}
}

// Entries returns a copy of all entries in append order.
func (l *Log) Entries() []model.JournalEntry {
	return append([]model.JournalEntry(nil), l.entries...)
}

// Get returns an entry by ID.
func (l *Log) Get(entryID string) (model.JournalEntry, bool) {
	i, ok := l.byID[entryID]
	if !ok {
		return model.JournalEntry{}, false
	}
	return l.entries[i], true
}

// NextEntrySeq returns the next available sequence number for a month.
func (l *Log) NextEntrySeq(year, month int) int {
	maxSeq := 0
	for _, e := range l.entries {
		y, m, seq, err := id.ParseEntryID(e.ID)
		if err != nil || y != year || m != month {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1
}

// Check validates e as Append would, without appending it.
func (l *Log) Check(e model.JournalEntry) error {
	if verrs := ValidateEntry(e, l.accounts); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return fmt.Errorf("%w: %s", ErrInvalidEntry, strings.Join(msgs, "; "))
	}
	return nil
}

// Append validates e, assigns an ID when empty, fills the totals and adds it
// to the end of the log. A zero date becomes now; an empty status becomes DRAFT.
func (l *Log) Append(e model.JournalEntry) (model.JournalEntry, error) {
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = model.StatusDraft
	}
	if e.ID == "" {
		e.ID = id.FormatEntryID(e.Date.Year(), int(e.Date.Month()), l.NextEntrySeq(e.Date.Year(), int(e.Date.Month())))
	} else if _, ok := l.byID[e.ID]; ok {
		return model.JournalEntry{}, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID)
	}
	e.Lines = append([]model.JournalLine(nil), e.Lines...)

	if err := l.Check(e); err != nil {
		return model.JournalEntry{}, err
	}
	e.ComputeTotals()

	l.entries = append(l.entries, e)
	l.byID[e.ID] = len(l.entries) - 1
	return e, nil
}

// SetStatus moves an entry along DRAFT -> APPROVED -> POSTED, or to REJECTED
// from DRAFT or APPROVED. It returns the entry before and after the change.
func (l *Log) SetStatus(entryID string, status model.EntryStatus) (before, after model.JournalEntry, err error) {
	i, ok := l.byID[entryID]
	if !ok {
		return before, after, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	before = l.entries[i]
	if !CanTransition(before.Status, status) {
		return before, after, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, before.Status, status)
	}
	after = before
	after.Status = status
	l.entries[i] = after
	return before, after, nil
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to model.EntryStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ReferencesAccount reports whether any approved or posted entry has a line
// addressed to accountID.
func (l *Log) ReferencesAccount(accountID string) bool {
	for _, e := range l.entries {
		if e.Status.Effective() && e.References(accountID) {
			return true
		}
	}
	return false
}

// Effective returns the approved and posted entries of fiscal year y.
// Entries without a year tag are included for every year.
func (l *Log) Effective(year string) []model.JournalEntry {
	var out []model.JournalEntry
	for _, e := range l.entries {
		if e.Status.Effective() && e.InYear(year) {
			out = append(out, e)
		}
	}
	return out
}
