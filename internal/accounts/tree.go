package accounts

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/schoolpaypro/ledger/internal/id"
	"github.com/schoolpaypro/ledger/internal/model"
)

// Tree is the in-memory chart-of-accounts forest. It enforces the structural
// invariants: unique codes, resolvable parents, no deletion of accounts that
// still have children. Tree is not safe for concurrent use.
type Tree struct {
	accounts []model.Account
	byID     map[string]int
	byCode   map[string]int
}

// NewTree creates a Tree from a slice of accounts. The slice is copied.
func NewTree(accounts []model.Account) *Tree {
	t := &Tree{}
	t.reset(append([]model.Account(nil), accounts...))
	return t
}

func (t *Tree) reset(accounts []model.Account) {
	t.accounts = accounts
	t.byID = make(map[string]int, len(accounts))
	t.byCode = make(map[string]int, len(accounts))
	for i, a := range accounts {
		t.byID[a.ID] = i
		t.byCode[a.Code] = i
	}
}

// Replace swaps the whole collection, as done after re-reading it from storage.
func (t *Tree) Replace(accounts []model.Account) {
	t.reset(append([]model.Account(nil), accounts...))
}

// Len returns the number of accounts.
func (t *Tree) Len() int {
	return len(t.accounts)
}

// All returns a copy of all accounts ordered by code.
func (t *Tree) All() []model.Account {
	out := append([]model.Account(nil), t.accounts...)
	SortByCode(out)
	return out
}

// Raw returns a copy of the accounts in insertion order, as persisted.
func (t *Tree) Raw() []model.Account {
	return append([]model.Account(nil), t.accounts...)
}

// Get returns an account by ID.
func (t *Tree) Get(id string) (model.Account, bool) {
	i, ok := t.byID[id]
	if !ok {
		return model.Account{}, false
	}
	return t.accounts[i], true
}

// Exists reports whether an account ID exists.
func (t *Tree) Exists(id string) bool {
	_, ok := t.byID[id]
	return ok
}

// ByCode returns the account holding code.
func (t *Tree) ByCode(code string) (model.Account, bool) {
	i, ok := t.byCode[code]
	if !ok {
		return model.Account{}, false
	}
	return t.accounts[i], true
}

// ByType returns all accounts of the given type.
func (t *Tree) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range t.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	SortByCode(result)
	return result
}

// Children returns the direct children of id ordered by code.
func (t *Tree) Children(id string) []model.Account {
	var result []model.Account
	for _, a := range t.accounts {
		if a.ParentID == id && id != "" {
			result = append(result, a)
		}
	}
	SortByCode(result)
	return result
}

// Roots returns the accounts without a parent ordered by code.
func (t *Tree) Roots() []model.Account {
	var result []model.Account
	for _, a := range t.accounts {
		if a.IsRoot() {
			result = append(result, a)
		}
	}
	SortByCode(result)
	return result
}

// HasChildren reports whether any account's parent is id.
func (t *Tree) HasChildren(id string) bool {
	for _, a := range t.accounts {
		if a.ParentID == id {
			return true
		}
	}
	return false
}

// IsAncestor reports whether ancestorID appears on the parent chain of id.
func (t *Tree) IsAncestor(ancestorID, id string) bool {
	seen := make(map[string]bool)
	for cur, ok := t.Get(id); ok && cur.ParentID != ""; cur, ok = t.Get(cur.ParentID) {
		if cur.ParentID == ancestorID {
			return true
		}
		if seen[cur.ID] {
			return false
		}
		seen[cur.ID] = true
	}
	return false
}

// Add validates and appends an account. An empty ID is assigned.
func (t *Tree) Add(a model.Account) (model.Account, error) {
	if !id.IsCode(a.Code) {
		return model.Account{}, fmt.Errorf("%w: %q", ErrInvalidCode, a.Code)
	}
	if !a.Type.Valid() {
		return model.Account{}, fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
	}
	if i, ok := t.byCode[a.Code]; ok {
		return model.Account{}, &DuplicateCodeError{Code: a.Code, ExistingID: t.accounts[i].ID}
	}
	if a.ParentID != "" && !t.Exists(a.ParentID) {
		return model.Account{}, fmt.Errorf("%w: %s", ErrParentNotFound, a.ParentID)
	}
	if a.ID == "" {
		a.ID = id.New("acc")
	} else if t.Exists(a.ID) {
		return model.Account{}, fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
	}
	a.Balance = a.Balance.Round(2)

	t.accounts = append(t.accounts, a)
	t.byID[a.ID] = len(t.accounts) - 1
	t.byCode[a.Code] = len(t.accounts) - 1
	return a, nil
}

// Patch holds optional field updates for Update. Nil fields are left unchanged.
type Patch struct {
	Code        *string             `json:"code,omitempty"`
	Name        *string             `json:"name,omitempty"`
	Type        *model.AccountType  `json:"type,omitempty"`
	Level       *model.AccountLevel `json:"level,omitempty"`
	ParentID    *string             `json:"parentId,omitempty"`
	IsMain      *bool               `json:"isMain,omitempty"`
	Description *string             `json:"description,omitempty"`
}

// Update merges p into the account with the given id.
func (t *Tree) Update(accountID string, p Patch) (model.Account, error) {
	i, ok := t.byID[accountID]
	if !ok {
		return model.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	a := t.accounts[i]

	if p.Code != nil && *p.Code != a.Code {
		if !id.IsCode(*p.Code) {
			return model.Account{}, fmt.Errorf("%w: %q", ErrInvalidCode, *p.Code)
		}
		if j, ok := t.byCode[*p.Code]; ok && j != i {
			return model.Account{}, &DuplicateCodeError{Code: *p.Code, ExistingID: t.accounts[j].ID}
		}
	}
	if IsSystem(a) {
		if p.Type != nil && *p.Type != a.Type {
			return model.Account{}, fmt.Errorf("%w: %s", ErrSystemAccount, a.Code)
		}
		if p.ParentID != nil && *p.ParentID != "" {
			return model.Account{}, fmt.Errorf("%w: %s", ErrSystemAccount, a.Code)
		}
		if p.Code != nil && *p.Code != a.Code {
			return model.Account{}, fmt.Errorf("%w: %s", ErrSystemAccount, a.Code)
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return model.Account{}, fmt.Errorf("%w: %q", ErrInvalidType, *p.Type)
	}
	if p.ParentID != nil && *p.ParentID != a.ParentID && *p.ParentID != "" {
		if !t.Exists(*p.ParentID) {
			return model.Account{}, fmt.Errorf("%w: %s", ErrParentNotFound, *p.ParentID)
		}
		if *p.ParentID == a.ID || t.IsAncestor(a.ID, *p.ParentID) {
			return model.Account{}, fmt.Errorf("%w: %s", ErrCycle, a.Code)
		}
	}

	if p.Code != nil {
		delete(t.byCode, a.Code)
		a.Code = *p.Code
		t.byCode[a.Code] = i
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Level != nil {
		a.Level = *p.Level
	}
	if p.ParentID != nil {
		a.ParentID = *p.ParentID
	}
	if p.IsMain != nil {
		a.IsMain = *p.IsMain
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	t.accounts[i] = a
	return a, nil
}

// Delete removes an account. Checks run in order: existence, children,
// system account.
func (t *Tree) Delete(accountID string) error {
	i, ok := t.byID[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	a := t.accounts[i]
	if t.HasChildren(accountID) {
		return fmt.Errorf("%w: %s", ErrHasChildren, a.Code)
	}
	if IsSystem(a) {
		return fmt.Errorf("%w: %s", ErrSystemAccount, a.Code)
	}

	next := make([]model.Account, 0, len(t.accounts)-1)
	next = append(next, t.accounts[:i]...)
	next = append(next, t.accounts[i+1:]...)
	t.reset(next)
	return nil
}

// ApplyDeltas adds each delta to its account's balance and rounds the result
// to 2 places. Unknown IDs fail the whole batch before anything changes.
func (t *Tree) ApplyDeltas(deltas map[string]decimal.Decimal) error {
	for accountID := range deltas {
		if !t.Exists(accountID) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
	}
	next := append([]model.Account(nil), t.accounts...)
	for accountID, d := range deltas {
		i := t.byID[accountID]
		next[i].Balance = next[i].Balance.Add(d).Round(2)
	}
	t.accounts = next
	return nil
}

// IsSystem reports whether a is one of the five permanent root accounts.
func IsSystem(a model.Account) bool {
	if a.ParentID != "" {
		return false
	}
	for _, c := range SystemCodes {
		if a.Code == c {
			return true
		}
	}
	return false
}

// SortByCode sorts accounts in numeric-aware code order.
func SortByCode(accounts []model.Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		return id.CompareCodes(accounts[i].Code, accounts[j].Code) < 0
	})
}
