package accounts

import (
	"github.com/schoolpaypro/ledger/internal/id"
	"github.com/schoolpaypro/ledger/internal/model"
)

// Well-known codes of the default chart.
const (
	CodeAssets             = "1"
	CodeLiabilities        = "2"
	CodeEquity             = "3"
	CodeRevenue            = "4"
	CodeExpenses           = "5"
	CodeCurrentAssets      = "11"
	CodeCashSafe           = "1101"
	CodeBanks              = "1102"
	CodeCurrentLiabilities = "21"
	CodeSuppliers          = "2101"
)

// SystemCodes are the codes of the five permanent root accounts.
var SystemCodes = []string{CodeAssets, CodeLiabilities, CodeEquity, CodeRevenue, CodeExpenses}

type chartRow struct {
	code, name, parent string
	typ                model.AccountType
	level              model.AccountLevel
	isMain             bool
}

// RootAccounts returns the five system root accounts with fresh IDs.
func RootAccounts() []model.Account {
	return build(rootRows())
}

// DefaultChart returns the default chart of accounts for a chart template.
func DefaultChart(template string) []model.Account {
	switch template {
	case "minimal":
		return RootAccounts()
	default:
		return build(append(rootRows(), schoolRows()...))
	}
}

func rootRows() []chartRow {
	return []chartRow{
		{CodeAssets, "Assets", "", model.AccountTypeAsset, model.LevelRoot, true},
		{CodeLiabilities, "Liabilities", "", model.AccountTypeLiability, model.LevelRoot, true},
		{CodeEquity, "Equity", "", model.AccountTypeEquity, model.LevelRoot, true},
		{CodeRevenue, "Revenue", "", model.AccountTypeRevenue, model.LevelRoot, true},
		{CodeExpenses, "Expenses", "", model.AccountTypeExpense, model.LevelRoot, true},
	}
}

func schoolRows() []chartRow {
	return []chartRow{
		{CodeCurrentAssets, "Current Assets", CodeAssets, model.AccountTypeAsset, model.LevelBranch, true},
		{CodeCashSafe, "Cash Safe", CodeCurrentAssets, model.AccountTypeAsset, model.LevelBranch, true},
		{CodeBanks, "Banks", CodeCurrentAssets, model.AccountTypeAsset, model.LevelBranch, true},
		{"1103", "Student Receivables", CodeCurrentAssets, model.AccountTypeAsset, model.LevelLeaf, false},
		{"1104", "Inventory", CodeCurrentAssets, model.AccountTypeAsset, model.LevelLeaf, false},
		{"12", "Fixed Assets", CodeAssets, model.AccountTypeAsset, model.LevelBranch, true},
		{CodeCurrentLiabilities, "Current Liabilities", CodeLiabilities, model.AccountTypeLiability, model.LevelBranch, true},
		{CodeSuppliers, "Suppliers", CodeCurrentLiabilities, model.AccountTypeLiability, model.LevelBranch, true},
		{"2102", "Cheques Payable", CodeCurrentLiabilities, model.AccountTypeLiability, model.LevelLeaf, false},
		{"31", "Capital", CodeEquity, model.AccountTypeEquity, model.LevelLeaf, false},
		{"41", "Tuition Fees", CodeRevenue, model.AccountTypeRevenue, model.LevelLeaf, false},
		{"42", "Bus Fees", CodeRevenue, model.AccountTypeRevenue, model.LevelLeaf, false},
		{"51", "Salaries", CodeExpenses, model.AccountTypeExpense, model.LevelLeaf, false},
		{"52", "Operating Expenses", CodeExpenses, model.AccountTypeExpense, model.LevelLeaf, false},
	}
}

func build(rows []chartRow) []model.Account {
	ids := make(map[string]string, len(rows))
	out := make([]model.Account, 0, len(rows))
	for _, r := range rows {
		acctID := id.New("acc")
		ids[r.code] = acctID
		out = append(out, model.Account{
			ID:       acctID,
			Code:     r.code,
			Name:     r.name,
			Type:     r.typ,
			Level:    r.level,
			ParentID: ids[r.parent],
			IsMain:   r.isMain,
		})
	}
	return out
}
