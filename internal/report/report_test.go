package report

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpaypro/ledger/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func acct(id, code, parent, balance string) model.Account {
	return model.Account{
		ID: id, Code: code, Name: "Account " + code, ParentID: parent,
		Type: model.AccountTypeAsset, Balance: dec(balance),
	}
}

func entry(status model.EntryStatus, year string, lines ...model.JournalLine) model.JournalEntry {
	return model.JournalEntry{Status: status, FiscalYear: year, Lines: lines}
}

func debit(accountID, amount string) model.JournalLine {
	return model.JournalLine{AccountID: accountID, Debit: dec(amount)}
}

func credit(accountID, amount string) model.JournalLine {
	return model.JournalLine{AccountID: accountID, Credit: dec(amount)}
}

func sample() []model.Account {
	return []model.Account{
		acct("a1", "1", "", "0"),
		acct("a11", "11", "a1", "0"),
		acct("a1101", "1101", "a11", "100"),
		acct("a1102", "1102", "a11", "-30"),
		acct("a12", "12", "a1", "5"),
		acct("a2", "2", "", "0"),
	}
}

func TestAggregate_StoredRollup(t *testing.T) {
	rows := Aggregate(sample(), nil, Options{})
	require.Len(t, rows, 6)

	codes := make([]string, len(rows))
	for i, r := range rows {
		codes[i] = r.Account.Code
	}
	assert.Equal(t, []string{"1", "11", "1101", "1102", "12", "2"}, codes)

	r, _ := Find(rows, "a1")
	assert.Equal(t, "75", r.Effective.String())
	assert.Equal(t, SourceBalance, r.Source)
	assert.Equal(t, "75", r.Debit.String())
	assert.True(t, r.Credit.IsZero())

	r, _ = Find(rows, "a1102")
	assert.Equal(t, 2, r.Depth)
	assert.True(t, r.Debit.IsZero())
	assert.Equal(t, "30", r.Credit.String(), "negative balance shown as credit")
}

func TestAggregate_JournalWinsPerNode(t *testing.T) {
	entries := []model.JournalEntry{
		entry(model.StatusApproved, "2025", debit("a1101", "40"), credit("a2", "40")),
		entry(model.StatusDraft, "2025", debit("a12", "99"), credit("a2", "99")),
		entry(model.StatusRejected, "2025", debit("a12", "99"), credit("a2", "99")),
	}
	rows := Aggregate(sample(), entries, Options{FiscalYear: "2025"})

	r, _ := Find(rows, "a1101")
	assert.Equal(t, SourceJournal, r.Source)
	assert.Equal(t, "40", r.Debit.String())
	assert.Equal(t, "100", r.Effective.String(), "stored rollup still computed")

	r, _ = Find(rows, "a1")
	assert.Equal(t, SourceJournal, r.Source)
	assert.Equal(t, "40", r.Debit.String())

	r, _ = Find(rows, "a12")
	assert.Equal(t, SourceBalance, r.Source, "draft and rejected entries ignored")
	assert.Equal(t, "5", r.Debit.String())

	r, _ = Find(rows, "a1102")
	assert.Equal(t, SourceBalance, r.Source, "sibling without activity falls back")
}

func TestAggregate_FiscalYearFilter(t *testing.T) {
	entries := []model.JournalEntry{
		entry(model.StatusPosted, "2024", debit("a12", "10"), credit("a2", "10")),
		entry(model.StatusPosted, "", debit("a12", "1"), credit("a2", "1")),
	}
	rows := Aggregate(sample(), entries, Options{FiscalYear: "2025"})
	r, _ := Find(rows, "a12")
	assert.Equal(t, "1", r.Debit.String(), "untagged entries count in every year")

	rows = Aggregate(sample(), entries, Options{})
	r, _ = Find(rows, "a12")
	assert.Equal(t, "11", r.Debit.String())
}

func TestAggregate_CycleAndOrphans(t *testing.T) {
	accts := []model.Account{
		acct("x", "7", "y", "1"),
		acct("y", "8", "x", "2"),
		acct("o", "9", "missing", "3"),
	}
	rows := Aggregate(accts, nil, Options{})
	require.Len(t, rows, 3)

	r, _ := Find(rows, "o")
	assert.Equal(t, 0, r.Depth)
	assert.Equal(t, "3", r.Effective.String())

	r, _ = Find(rows, "x")
	assert.Equal(t, "3", r.Effective.String(), "cycle back-edge contributes nothing")
}

func TestTotal(t *testing.T) {
	accts := append(sample(),
		model.Account{ID: "a3", Code: "3", Type: model.AccountTypeEquity, Balance: dec("500")},
		model.Account{ID: "a4", Code: "4", Type: model.AccountTypeRevenue, Balance: dec("-20")},
	)
	rows := Aggregate(accts, nil, Options{})

	tot := Total(rows, nil)
	assert.Equal(t, "75", tot.Debit.String())
	assert.Equal(t, "20", tot.Credit.String(), "equity excluded")

	tot = Total(rows, []string{"3"})
	assert.Equal(t, "500", tot.Debit.String())
}

func TestByType(t *testing.T) {
	accts := append(sample(), model.Account{ID: "a4", Code: "4", Type: model.AccountTypeRevenue, Balance: dec("-20")})
	got := ByType(Aggregate(accts, nil, Options{}))
	assert.Equal(t, "75", got[model.AccountTypeAsset].String())
	assert.Equal(t, "-20", got[model.AccountTypeRevenue].String())
}

func TestRender(t *testing.T) {
	rows := Aggregate(sample(), nil, Options{})
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rows, Total(rows, nil)))

	out := buf.String()
	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "    Account 1101")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "75.00")
}

// The stored rollup of every node equals the plain sum of balances over its
// subtree, for arbitrary forests.
func TestAggregate_RollupMatchesSubtreeSum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(40)
		accts := make([]model.Account, n)
		for i := range accts {
			parent := ""
			if i > 0 && rng.Intn(5) > 0 {
				parent = fmt.Sprintf("n%d", rng.Intn(i))
			}
			bal := decimal.New(int64(rng.Intn(20001)-10000), -2)
			accts[i] = model.Account{ID: fmt.Sprintf("n%d", i), Code: fmt.Sprint(i + 1), ParentID: parent, Balance: bal}
		}

		rows := Aggregate(accts, nil, Options{})
		require.Len(t, rows, n)
		for _, a := range accts {
			want := decimal.Zero
			for _, b := range accts {
				if b.ID == a.ID || isDescendant(accts, a.ID, b) {
					want = want.Add(b.Balance)
				}
			}
			r, ok := Find(rows, a.ID)
			require.True(t, ok)
			assert.True(t, want.Equal(r.Effective), "trial %d node %s: want %s got %s", trial, a.ID, want, r.Effective)
		}
	}
}

func isDescendant(accts []model.Account, ancestorID string, b model.Account) bool {
	parent := make(map[string]string, len(accts))
	for _, a := range accts {
		parent[a.ID] = a.ParentID
	}
	for p := parent[b.ID]; p != ""; p = parent[p] {
		if p == ancestorID {
			return true
		}
	}
	return false
}
