package accounts

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCode is returned when a code is already used by another account.
	ErrDuplicateCode = errors.New("duplicate account code")

	// ErrDuplicateID is returned when an account ID is already taken.
	ErrDuplicateID = errors.New("duplicate account id")

	// ErrParentNotFound is returned when a parent reference does not resolve.
	ErrParentNotFound = errors.New("parent account not found")

	// ErrAccountNotFound is returned when an account ID does not resolve.
	ErrAccountNotFound = errors.New("account not found")

	// ErrHasChildren is returned when deleting an account that still has children.
	ErrHasChildren = errors.New("account has children")

	// ErrSystemAccount is returned when a flow would delete, re-type or
	// re-parent one of the five root accounts.
	ErrSystemAccount = errors.New("system account cannot be modified")

	// ErrInvalidCode is returned for codes that are not digit strings.
	ErrInvalidCode = errors.New("account code must be digits")

	// ErrInvalidType is returned for an unknown account type.
	ErrInvalidType = errors.New("invalid account type")

	// ErrCycle is returned when re-parenting would put an account under itself.
	ErrCycle = errors.New("account cannot be its own ancestor")
)

// DuplicateCodeError names the code and the account already holding it.
type DuplicateCodeError struct {
	Code       string
	ExistingID string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("duplicate account code %s (held by %s)", e.Code, e.ExistingID)
}

func (e *DuplicateCodeError) Unwrap() error {
	return ErrDuplicateCode
}
