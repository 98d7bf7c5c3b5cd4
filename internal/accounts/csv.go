package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/schoolpaypro/ledger/internal/model"
)

// Header is the CSV header for chart-of-accounts.csv.
var Header = []string{"account_id", "code", "name", "type", "level", "parent_id", "is_main", "balance", "description"}

const (
	numFields = 9
	colID     = 0
	colCode   = 1
	colName   = 2
	colType   = 3
	colLevel  = 4
	colParent = 5
	colMain   = 6
	colBal    = 7
	colDesc   = 8
)

// ReadAccounts reads chart-of-accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes chart-of-accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = acct.ID
	row[colCode] = acct.Code
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colLevel] = strconv.Itoa(int(acct.Level))
	row[colParent] = acct.ParentID
	row[colMain] = strconv.FormatBool(acct.IsMain)
	row[colBal] = acct.Balance.StringFixed(2)
	row[colDesc] = acct.Description
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	level, err := strconv.Atoi(record[colLevel])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing level %q: %w", record[colLevel], err)
	}

	isMain, err := strconv.ParseBool(record[colMain])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing is_main %q: %w", record[colMain], err)
	}

	balance := decimal.Zero
	if record[colBal] != "" {
		balance, err = decimal.NewFromString(record[colBal])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing balance %q: %w", record[colBal], err)
		}
	}

	return model.Account{
		ID:          record[colID],
		Code:        record[colCode],
		Name:        record[colName],
		Type:        model.AccountType(record[colType]),
		Level:       model.AccountLevel(level),
		ParentID:    record[colParent],
		IsMain:      isMain,
		Balance:     balance,
		Description: record[colDesc],
	}, nil
}
