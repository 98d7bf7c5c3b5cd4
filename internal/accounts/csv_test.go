package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpaypro/ledger/internal/model"
)

func TestRoundTrip(t *testing.T) {
	accounts := []model.Account{
		{ID: "acc_1", Code: "1", Name: "Assets", Type: model.AccountTypeAsset, Level: model.LevelRoot, IsMain: true},
		{ID: "acc_2", Code: "11", Name: "Current Assets", Type: model.AccountTypeAsset, Level: model.LevelBranch, ParentID: "acc_1", Balance: decimal.RequireFromString("12.5"), Description: "cash and banks"},
	}

	var buf bytes.Buffer
	err := WriteAccounts(&buf, accounts)
	require.NoError(t, err)

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, accounts[0].ID, got[0].ID)
	assert.Equal(t, accounts[0].Code, got[0].Code)
	assert.True(t, got[0].IsMain)
	assert.Equal(t, "", got[0].ParentID)

	assert.Equal(t, "acc_1", got[1].ParentID)
	assert.Equal(t, model.LevelBranch, got[1].Level)
	assert.True(t, got[1].Balance.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "cash and banks", got[1].Description)
}

func TestReadAccounts_BadRows(t *testing.T) {
	header := strings.Join(Header, ",") + "\n"
	tests := []struct {
		name string
		row  string
	}{
		{"bad level", "a,1,Assets,asset,x,,true,0,\n"},
		{"bad is_main", "a,1,Assets,asset,1,,maybe,0,\n"},
		{"bad balance", "a,1,Assets,asset,1,,true,abc,\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAccounts(strings.NewReader(header + tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "row 2")
		})
	}
}

func TestReadAccounts_Empty(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAllAccountTypes(t *testing.T) {
	accountTypes := []model.AccountType{
		model.AccountTypeAsset,
		model.AccountTypeLiability,
		model.AccountTypeEquity,
		model.AccountTypeRevenue,
		model.AccountTypeExpense,
	}
	for _, at := range accountTypes {
		acct := model.Account{ID: "acc_x", Code: "9", Name: "Test", Type: at, Level: model.LevelLeaf}

		var buf bytes.Buffer
		err := WriteAccounts(&buf, []model.Account{acct})
		require.NoError(t, err)

		got, err := ReadAccounts(&buf)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, at, got[0].Type, "account type %q should survive round-trip", at)
	}
}

func TestDefaultChartRoundTrip(t *testing.T) {
	chart := DefaultChart("school")

	var buf bytes.Buffer
	err := WriteAccounts(&buf, chart)
	require.NoError(t, err)

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(chart))

	for i := range chart {
		assert.Equal(t, chart[i].ID, got[i].ID)
		assert.Equal(t, chart[i].Code, got[i].Code)
		assert.Equal(t, chart[i].Name, got[i].Name)
		assert.Equal(t, chart[i].Type, got[i].Type)
		assert.Equal(t, chart[i].ParentID, got[i].ParentID)
		assert.Equal(t, chart[i].IsMain, got[i].IsMain)
	}
}
