package journal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/schoolpaypro/ledger/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.EntryID, e.Description)
}

// AccountChecker tests whether an account ID exists in the chart of accounts.
type AccountChecker interface {
	Exists(id string) bool
}

var hundred = decimal.NewFromInt(100)

// ValidateEntry enforces the entry invariants:
//  1. debits equal credits
//  2. each line carries exactly one of debit or credit, never negative
//  3. every line references a known account
//  4. amounts have at most 2 decimal places
//  5. at least two lines
func ValidateEntry(e model.JournalEntry, accounts AccountChecker) []ValidationError {
	var errs []ValidationError

	if len(e.Lines) < 2 {
		errs = append(errs, ValidationError{
			Invariant:   5,
			EntryID:     e.ID,
			Description: fmt.Sprintf("entry needs at least 2 lines, has %d", len(e.Lines)),
		})
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, l := range e.Lines {
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)

		hasDebit := !l.Debit.IsZero()
		hasCredit := !l.Credit.IsZero()
		if hasDebit == hasCredit || l.Debit.IsNegative() || l.Credit.IsNegative() {
			errs = append(errs, ValidationError{
				Invariant:   2,
				EntryID:     e.ID,
				Description: fmt.Sprintf("line %d must have exactly one positive debit or credit", i+1),
			})
		}

		if accounts != nil && !accounts.Exists(l.AccountID) {
			errs = append(errs, ValidationError{
				Invariant:   3,
				EntryID:     e.ID,
				Description: fmt.Sprintf("line %d: unknown account %s", i+1, l.AccountID),
			})
		}

		for _, amt := range []decimal.Decimal{l.Debit, l.Credit} {
			if !amt.Mul(hundred).Equal(amt.Mul(hundred).Floor()) {
				errs = append(errs, ValidationError{
					Invariant:   4,
					EntryID:     e.ID,
					Description: fmt.Sprintf("line %d: amount %s has more than 2 decimal places", i+1, amt),
				})
			}
		}
	}

	if !totalDebit.Equal(totalCredit) {
		errs = append(errs, ValidationError{
			Invariant:   1,
			EntryID:     e.ID,
			Description: fmt.Sprintf("debits (%s) != credits (%s)", totalDebit.StringFixed(2), totalCredit.StringFixed(2)),
		})
	}

	return errs
}
