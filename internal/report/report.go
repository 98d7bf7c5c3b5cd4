// Package report rolls account balances and journal activity up the chart of
// accounts for display.
//
// Two rollups are computed side by side and never reconciled: the stored
// balances of a subtree, and the debit/credit totals of approved or posted
// journal lines addressed to it. Per account, the journal totals are shown
// when either is non-zero; otherwise the stored rollup is shown as a one-sided
// pair.
package report

import (
	"github.com/shopspring/decimal"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/model"
)

// Source tells which rollup a row's Debit and Credit come from.
type Source string

const (
	SourceBalance Source = "balance"
	SourceJournal Source = "journal"
)

// DefaultTotalCodes are the root codes summed by Total. Equity is left out.
var DefaultTotalCodes = []string{
	accounts.CodeAssets,
	accounts.CodeLiabilities,
	accounts.CodeRevenue,
	accounts.CodeExpenses,
}

// Options filter the journal side of the aggregation.
type Options struct {
	// FiscalYear keeps entries tagged with this year plus untagged ones.
	// Empty keeps every effective entry.
	FiscalYear string
}

// Row is the aggregated view of one account.
type Row struct {
	Account model.Account
	Depth   int

	// Effective is the account's balance plus that of all descendants.
	Effective decimal.Decimal

	JournalDebit  decimal.Decimal
	JournalCredit decimal.Decimal

	Debit  decimal.Decimal
	Credit decimal.Decimal
	Source Source
}

// Net returns Debit minus Credit.
func (r Row) Net() decimal.Decimal {
	return r.Debit.Sub(r.Credit)
}

type sums struct {
	effective, debit, credit decimal.Decimal
}

type aggregator struct {
	children map[string][]model.Account
	debit    map[string]decimal.Decimal
	credit   map[string]decimal.Decimal
	memo     map[string]sums
	visiting map[string]bool
}

// Aggregate returns one row per account in depth-first code order. Accounts
// whose parent is missing are treated as roots. A parent cycle contributes
// nothing back into itself.
func Aggregate(accts []model.Account, entries []model.JournalEntry, opts Options) []Row {
	byID := make(map[string]bool, len(accts))
	for _, a := range accts {
		byID[a.ID] = true
	}

	ag := &aggregator{
		children: make(map[string][]model.Account),
		debit:    make(map[string]decimal.Decimal),
		credit:   make(map[string]decimal.Decimal),
		memo:     make(map[string]sums, len(accts)),
		visiting: make(map[string]bool),
	}

	var roots []model.Account
	for _, a := range accts {
		if a.ParentID == "" || !byID[a.ParentID] {
			roots = append(roots, a)
			continue
		}
		ag.children[a.ParentID] = append(ag.children[a.ParentID], a)
	}
	accounts.SortByCode(roots)
	for k := range ag.children {
		accounts.SortByCode(ag.children[k])
	}

	for _, e := range entries {
		if !e.Status.Effective() || !e.InYear(opts.FiscalYear) {
			continue
		}
		for _, l := range e.Lines {
			if !byID[l.AccountID] {
				continue
			}
			ag.debit[l.AccountID] = ag.debit[l.AccountID].Add(l.Debit)
			ag.credit[l.AccountID] = ag.credit[l.AccountID].Add(l.Credit)
		}
	}

	rows := make([]Row, 0, len(accts))
	emitted := make(map[string]bool, len(accts))
	var walk func(a model.Account, depth int)
	walk = func(a model.Account, depth int) {
		if emitted[a.ID] {
			return
		}
		emitted[a.ID] = true
		rows = append(rows, newRow(a, depth, ag.visit(a)))
		for _, c := range ag.children[a.ID] {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}

	// Accounts only reachable through a cycle.
	rest := make([]model.Account, 0)
	for _, a := range accts {
		if !emitted[a.ID] {
			rest = append(rest, a)
		}
	}
	accounts.SortByCode(rest)
	for _, a := range rest {
		walk(a, 0)
	}
	return rows
}

func (ag *aggregator) visit(a model.Account) sums {
	if s, ok := ag.memo[a.ID]; ok {
		return s
	}
	if ag.visiting[a.ID] {
		return sums{}
	}
	ag.visiting[a.ID] = true

	s := sums{
		effective: a.Balance,
		debit:     ag.debit[a.ID],
		credit:    ag.credit[a.ID],
	}
	for _, c := range ag.children[a.ID] {
		cs := ag.visit(c)
		s.effective = s.effective.Add(cs.effective)
		s.debit = s.debit.Add(cs.debit)
		s.credit = s.credit.Add(cs.credit)
	}

	delete(ag.visiting, a.ID)
	ag.memo[a.ID] = s
	return s
}

func newRow(a model.Account, depth int, s sums) Row {
	r := Row{
		Account:       a,
		Depth:         depth,
		Effective:     s.effective.Round(2),
		JournalDebit:  s.debit.Round(2),
		JournalCredit: s.credit.Round(2),
	}
	if !r.JournalDebit.IsZero() || !r.JournalCredit.IsZero() {
		r.Debit, r.Credit, r.Source = r.JournalDebit, r.JournalCredit, SourceJournal
		return r
	}
	r.Source = SourceBalance
	if r.Effective.IsNegative() {
		r.Credit = r.Effective.Neg()
	} else {
		r.Debit = r.Effective
	}
	return r
}

// Totals is the footer of a report.
type Totals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Total sums the rows of top-level accounts whose code is in codes. A nil
// codes uses DefaultTotalCodes.
func Total(rows []Row, codes []string) Totals {
	if codes == nil {
		codes = DefaultTotalCodes
	}
	allowed := make(map[string]bool, len(codes))
	for _, c := range codes {
		allowed[c] = true
	}

	t := Totals{}
	for _, r := range rows {
		if r.Depth != 0 || !allowed[r.Account.Code] {
			continue
		}
		t.Debit = t.Debit.Add(r.Debit)
		t.Credit = t.Credit.Add(r.Credit)
	}
	return t
}

// Find returns the row of accountID.
func Find(rows []Row, accountID string) (Row, bool) {
	for _, r := range rows {
		if r.Account.ID == accountID {
			return r, true
		}
	}
	return Row{}, false
}

// ByType returns the net of the top-level rows of each account type.
func ByType(rows []Row) map[model.AccountType]decimal.Decimal {
	out := make(map[model.AccountType]decimal.Decimal)
	for _, r := range rows {
		if r.Depth == 0 {
			out[r.Account.Type] = out[r.Account.Type].Add(r.Net())
		}
	}
	return out
}
