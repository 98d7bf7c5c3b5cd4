package model

import "time"

// TreasuryKind selects the folder a treasury account is filed under.
type TreasuryKind string

const (
	TreasuryBank TreasuryKind = "bank"
	TreasuryCash TreasuryKind = "cash"
)

// TreasuryAccount is a bank account or cash safe backed by one leaf Account.
type TreasuryAccount struct {
	ID            string       `json:"id"`
	Kind          TreasuryKind `json:"kind"`
	Name          string       `json:"name"`
	AccountID     string       `json:"accountId"`
	BankName      string       `json:"bankName,omitempty"`
	AccountNumber string       `json:"accountNumber,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// SupplierAccount is a supplier backed by one leaf Account under Suppliers.
type SupplierAccount struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AccountID string    `json:"accountId"`
	Phone     string    `json:"phone,omitempty"`
	TaxNumber string    `json:"taxNumber,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
