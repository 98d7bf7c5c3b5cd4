package satellite

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/ledger"
	"github.com/schoolpaypro/ledger/internal/model"
	"github.com/schoolpaypro/ledger/internal/persist"
	"github.com/schoolpaypro/ledger/internal/store"
	"github.com/schoolpaypro/ledger/internal/store/memory"
	"github.com/schoolpaypro/ledger/internal/store/storetest"
	"github.com/schoolpaypro/ledger/internal/yearclose"
)

type fixture struct {
	store  store.Store
	ledger *ledger.Service
	sat    *Service
}

func setup(t *testing.T, chart []model.Account) fixture {
	t.Helper()
	return setupOn(t, memory.New(), chart)
}

func setupOn(t *testing.T, s store.Store, chart []model.Account) fixture {
	t.Helper()
	ctx := context.Background()
	b := persist.New(s, nil)
	l, err := ledger.Open(ctx, ledger.Config{SchoolID: "s1", FiscalYear: "2025", Bridge: b, Gate: yearclose.New(s)})
	require.NoError(t, err)
	require.NoError(t, l.Seed(ctx, chart))
	sat, err := Open(ctx, l, b, nil)
	require.NoError(t, err)
	return fixture{store: s, ledger: l, sat: sat}
}

func (f fixture) code(t *testing.T, c string) model.Account {
	t.Helper()
	a, ok := f.ledger.AccountByCode(c)
	require.True(t, ok, "account %s", c)
	return a
}

func TestAddTreasury_CreatesFolderChain(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.RootAccounts())

	bank, err := f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryBank, Name: "National Bank", BankName: "NB", AccountNumber: "0042"})
	require.NoError(t, err)

	current := f.code(t, "11")
	assert.Equal(t, f.code(t, "1").ID, current.ParentID)
	assert.True(t, current.IsMain)
	banks := f.code(t, "1102")
	assert.Equal(t, current.ID, banks.ParentID)

	leaf := f.code(t, "110201")
	assert.Equal(t, banks.ID, leaf.ParentID)
	assert.Equal(t, model.AccountTypeAsset, leaf.Type)
	assert.Equal(t, model.LevelLeaf, leaf.Level)
	assert.Equal(t, "National Bank", leaf.Name)
	assert.Equal(t, leaf.ID, bank.AccountID)
	assert.Equal(t, "NB 0042", leaf.Description)

	second, err := f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryBank, Name: "City Bank"})
	require.NoError(t, err)
	assert.Equal(t, f.code(t, "110202").ID, second.AccountID)

	cash, err := f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryCash, Name: "Main Safe"})
	require.NoError(t, err)
	assert.Equal(t, f.code(t, "110101").ID, cash.AccountID)
	assert.Equal(t, current.ID, f.code(t, "1101").ParentID, "existing Current Assets reused")

	assert.Len(t, f.sat.Treasury(), 3)
	assert.Len(t, f.ledger.Accounts(), 5+3+3)
}

func TestAddTreasury_Validation(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.DefaultChart("school"))

	_, err := f.sat.AddTreasury(ctx, TreasuryInput{Kind: "vault", Name: "X"})
	assert.ErrorIs(t, err, ErrInvalidKind)
	_, err = f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryCash, Name: "  "})
	assert.ErrorIs(t, err, ErrNameRequired)
	assert.Len(t, f.ledger.Accounts(), 19)
}

func TestAddSupplier(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.DefaultChart("school"))

	sp, err := f.sat.AddSupplier(ctx, SupplierInput{Name: "Books Ltd", Phone: "555-0101", TaxNumber: "TX-9"})
	require.NoError(t, err)
	leaf := f.code(t, "210101")
	assert.Equal(t, leaf.ID, sp.AccountID)
	assert.Equal(t, model.AccountTypeLiability, leaf.Type)
	assert.Equal(t, f.code(t, "2101").ID, leaf.ParentID)
	assert.Len(t, f.ledger.Accounts(), 20, "folders already existed")
}

func TestDeleteTreasury_NonZeroBalance(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.DefaultChart("school"))
	rec, err := f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryBank, Name: "National Bank"})
	require.NoError(t, err)

	require.NoError(t, f.ledger.PostTransactions(ctx, []model.Posting{{AccountID: rec.AccountID, Amount: decimal.NewFromInt(250)}}))
	err = f.sat.DeleteTreasury(ctx, rec.ID)
	assert.ErrorIs(t, err, ledger.ErrBalanceNotZero)
	assert.Len(t, f.sat.Treasury(), 1, "record kept")
	_, ok := f.ledger.Account(rec.AccountID)
	assert.True(t, ok, "account kept")

	require.NoError(t, f.ledger.PostTransactions(ctx, []model.Posting{{AccountID: rec.AccountID, Amount: decimal.NewFromInt(-250)}}))
	require.NoError(t, f.sat.DeleteTreasury(ctx, rec.ID))
	assert.Empty(t, f.sat.Treasury())
	_, ok = f.ledger.Account(rec.AccountID)
	assert.False(t, ok)

	assert.ErrorIs(t, f.sat.DeleteTreasury(ctx, rec.ID), ErrNotFound)
}

func (f fixture) reopen(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	b := persist.New(f.store, nil)
	l, err := ledger.Open(ctx, ledger.Config{SchoolID: "s1", FiscalYear: "2025", Bridge: b})
	require.NoError(t, err)
	sat, err := Open(ctx, l, b, nil)
	require.NoError(t, err)
	return sat
}

func TestDeleteTreasury_NonZeroBalanceKeepsStoredRecord(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.DefaultChart("school"))
	rec, err := f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryBank, Name: "National Bank"})
	require.NoError(t, err)
	require.NoError(t, f.ledger.PostTransactions(ctx, []model.Posting{{AccountID: rec.AccountID, Amount: decimal.NewFromInt(250)}}))

	assert.ErrorIs(t, f.sat.DeleteTreasury(ctx, rec.ID), ledger.ErrBalanceNotZero)

	reopened := f.reopen(t)
	require.Len(t, reopened.Treasury(), 1)
	assert.Equal(t, rec.ID, reopened.Treasury()[0].ID)
}

func TestDeleteTreasury_SaveFailureKeepsAccount(t *testing.T) {
	ctx := context.Background()
	faulty := storetest.NewFaulty(memory.New())
	f := setupOn(t, faulty, accounts.DefaultChart("school"))
	rec, err := f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryCash, Name: "Front Desk"})
	require.NoError(t, err)

	faulty.FailPut(persist.KeyTreasury, errors.New("disk full"))
	require.Error(t, f.sat.DeleteTreasury(ctx, rec.ID))
	assert.Len(t, f.sat.Treasury(), 1, "record kept")
	_, ok := f.ledger.Account(rec.AccountID)
	assert.True(t, ok, "account kept")

	faulty.Heal()
	reopened := f.reopen(t)
	assert.Len(t, reopened.Treasury(), 1)
	_, ok = reopened.ledger.Account(rec.AccountID)
	assert.True(t, ok, "account still stored")

	require.NoError(t, f.sat.DeleteTreasury(ctx, rec.ID))
	assert.Empty(t, f.sat.Treasury())
	_, ok = f.ledger.Account(rec.AccountID)
	assert.False(t, ok)
	assert.Empty(t, f.reopen(t).Treasury())
}

func TestDeleteSupplier_SaveFailureKeepsAccount(t *testing.T) {
	ctx := context.Background()
	faulty := storetest.NewFaulty(memory.New())
	f := setupOn(t, faulty, accounts.DefaultChart("school"))
	sp, err := f.sat.AddSupplier(ctx, SupplierInput{Name: "Books Ltd"})
	require.NoError(t, err)

	faulty.FailPut(persist.KeySuppliers, errors.New("disk full"))
	require.Error(t, f.sat.DeleteSupplier(ctx, sp.ID))
	assert.Len(t, f.sat.Suppliers(), 1)
	_, ok := f.ledger.Account(sp.AccountID)
	assert.True(t, ok)

	faulty.Heal()
	require.NoError(t, f.sat.DeleteSupplier(ctx, sp.ID))
	assert.Empty(t, f.reopen(t).Suppliers())
}

func TestDeleteSupplier_OrphanedRecord(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.DefaultChart("school"))
	sp, err := f.sat.AddSupplier(ctx, SupplierInput{Name: "Uniforms Co"})
	require.NoError(t, err)

	// The account was removed directly; the record still goes.
	require.NoError(t, f.ledger.DeleteAccount(ctx, sp.AccountID))
	require.NoError(t, f.sat.DeleteSupplier(ctx, sp.ID))
	assert.Empty(t, f.sat.Suppliers())
}

func TestClosedYear(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.RootAccounts())
	_, err := f.ledger.CloseYear(ctx, "bursar")
	require.NoError(t, err)

	_, err = f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryBank, Name: "National Bank"})
	assert.ErrorIs(t, err, ledger.ErrYearClosed)
	_, err = f.sat.AddSupplier(ctx, SupplierInput{Name: "Books Ltd"})
	assert.ErrorIs(t, err, ledger.ErrYearClosed)
	assert.Len(t, f.ledger.Accounts(), 5, "no folders created")
}

func TestRecordsPersist(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.DefaultChart("school"))
	_, err := f.sat.AddTreasury(ctx, TreasuryInput{Kind: model.TreasuryCash, Name: "Front Desk"})
	require.NoError(t, err)
	_, err = f.sat.AddSupplier(ctx, SupplierInput{Name: "Books Ltd"})
	require.NoError(t, err)

	doc, err := f.store.Get(ctx, store.Key(persist.KeyTreasury, "s1"))
	require.NoError(t, err)
	assert.Contains(t, string(doc.Data), "Front Desk")

	b := persist.New(f.store, nil)
	l, err := ledger.Open(ctx, ledger.Config{SchoolID: "s1", FiscalYear: "2025", Bridge: b})
	require.NoError(t, err)
	reopened, err := Open(ctx, l, b, nil)
	require.NoError(t, err)
	assert.Len(t, reopened.Treasury(), 1)
	assert.Len(t, reopened.Suppliers(), 1)
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	f := setup(t, accounts.DefaultChart("school"))

	b := persist.New(f.store, nil)
	l, err := ledger.Open(ctx, ledger.Config{SchoolID: "s1", FiscalYear: "2025", Bridge: b})
	require.NoError(t, err)
	other, err := Open(ctx, l, b, nil)
	require.NoError(t, err)

	_, err = f.sat.AddSupplier(ctx, SupplierInput{Name: "Books Ltd"})
	require.NoError(t, err)

	changed, err := other.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, other.Suppliers(), 1)
}
