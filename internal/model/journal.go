package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus represents the lifecycle state of a journal entry.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusApproved EntryStatus = "APPROVED"
	StatusPosted   EntryStatus = "POSTED"
	StatusRejected EntryStatus = "REJECTED"
)

// Effective reports whether entries in this status count toward balances
// and reports.
func (s EntryStatus) Effective() bool {
	return s == StatusApproved || s == StatusPosted
}

// JournalLine is one debit or credit row of a journal entry.
type JournalLine struct {
	AccountID string          `json:"accountId"`
	Debit     decimal.Decimal `json:"debit"`  // zero if credit side
	Credit    decimal.Decimal `json:"credit"` // zero if debit side
	Note      string          `json:"note,omitempty"`
}

// Net returns debit minus credit.
func (l JournalLine) Net() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// JournalEntry is one entry of the append-only journal log.
type JournalEntry struct {
	ID          string          `json:"id"` // "YYYY-MM-NNN"
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	FiscalYear  string          `json:"fiscalYear,omitempty"` // "" = always in year
	Status      EntryStatus     `json:"status"`
	Lines       []JournalLine   `json:"lines"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
	IsBalanced  bool            `json:"isBalanced"`
}

// ComputeTotals fills TotalDebit, TotalCredit and IsBalanced from the lines.
func (e *JournalEntry) ComputeTotals() {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	e.TotalDebit = debit.Round(2)
	e.TotalCredit = credit.Round(2)
	e.IsBalanced = e.TotalDebit.Equal(e.TotalCredit)
}

// InYear reports whether the entry belongs to fiscal year y. Entries without
// a year tag belong to every year.
func (e JournalEntry) InYear(y string) bool {
	return e.FiscalYear == "" || y == "" || e.FiscalYear == y
}

// References reports whether any line of the entry addresses accountID.
func (e JournalEntry) References(accountID string) bool {
	for _, l := range e.Lines {
		if l.AccountID == accountID {
			return true
		}
	}
	return false
}
