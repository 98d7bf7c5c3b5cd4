package ledger

import (
	"errors"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/journal"
	"github.com/schoolpaypro/ledger/internal/store"
)

var (
	// ErrYearClosed is returned by every mutation while the active fiscal
	// year is closed.
	ErrYearClosed = errors.New("financial year is closed")

	// ErrBalanceNotZero is returned when deleting an account that still
	// carries a balance.
	ErrBalanceNotZero = errors.New("account balance is not zero")

	// ErrHasPostings is returned when deleting an account referenced by an
	// approved or posted journal line.
	ErrHasPostings = errors.New("account has journal postings")

	// ErrAlreadyInitialized is returned when seeding a ledger that already
	// has a chart of accounts.
	ErrAlreadyInitialized = errors.New("ledger already initialized")
)

// IsValidation reports whether err rejects malformed input or an unknown
// reference.
func IsValidation(err error) bool {
	for _, target := range []error{
		accounts.ErrDuplicateCode,
		accounts.ErrDuplicateID,
		accounts.ErrParentNotFound,
		accounts.ErrAccountNotFound,
		accounts.ErrInvalidCode,
		accounts.ErrInvalidType,
		accounts.ErrCycle,
		journal.ErrInvalidEntry,
		journal.ErrEntryNotFound,
		journal.ErrDuplicateEntry,
		journal.ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsGuard reports whether err is a refused deletion or structural edit.
func IsGuard(err error) bool {
	return errors.Is(err, accounts.ErrHasChildren) ||
		errors.Is(err, accounts.ErrSystemAccount) ||
		errors.Is(err, ErrBalanceNotZero) ||
		errors.Is(err, ErrHasPostings)
}

// IsLocked reports whether err comes from a closed fiscal year.
func IsLocked(err error) bool {
	return errors.Is(err, ErrYearClosed)
}

// IsConflict reports whether err is a lost optimistic-concurrency race.
func IsConflict(err error) bool {
	return errors.Is(err, store.ErrVersionConflict)
}

// IsNotFound reports whether err names an account or entry that does not
// exist.
func IsNotFound(err error) bool {
	return errors.Is(err, accounts.ErrAccountNotFound) || errors.Is(err, journal.ErrEntryNotFound)
}
