package model

import "github.com/shopspring/decimal"

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is one of the five known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// AccountLevel is a coarse depth marker. It is not required to match the
// account's actual depth in the tree.
type AccountLevel int

const (
	LevelRoot   AccountLevel = 1
	LevelBranch AccountLevel = 2
	LevelLeaf   AccountLevel = 3
)

// Account is a node in the chart-of-accounts forest.
type Account struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Type        AccountType     `json:"type"`
	Level       AccountLevel    `json:"level"`
	ParentID    string          `json:"parentId,omitempty"` // "" = root
	IsMain      bool            `json:"isMain"`
	Balance     decimal.Decimal `json:"balance"` // own balance, descendants excluded
	Description string          `json:"description,omitempty"`
}

// IsRoot reports whether the account has no parent.
func (a Account) IsRoot() bool {
	return a.ParentID == ""
}
