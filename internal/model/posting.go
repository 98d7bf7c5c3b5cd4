package model

import "github.com/shopspring/decimal"

// Posting is a signed balance adjustment addressed to one account.
type Posting struct {
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}
