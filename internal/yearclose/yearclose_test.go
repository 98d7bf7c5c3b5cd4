package yearclose

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpaypro/ledger/internal/store"
	"github.com/schoolpaypro/ledger/internal/store/memory"
)

func TestOpenByDefault(t *testing.T) {
	g := New(memory.New())
	closed, err := g.IsFinancialYearClosed(context.Background(), "s1", "2025-2026")
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestCloseAndReopen(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	g := New(s)
	g.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }

	sum := Summary{TotalAssets: decimal.NewFromInt(500), NetIncome: decimal.NewFromInt(40), EntryCount: 3}
	rec, err := g.Close(ctx, "s1", "2025-2026", "bursar", sum)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-31T12:00:00Z", rec.CloseDate)

	closed, err := g.IsFinancialYearClosed(ctx, "s1", "2025-2026")
	require.NoError(t, err)
	assert.True(t, closed)

	other, err := g.IsFinancialYearClosed(ctx, "s1", "2026-2027")
	require.NoError(t, err)
	assert.False(t, other, "other years stay open")

	got, err := g.Status(ctx, "s1", "2025-2026")
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.True(t, got.Summary.TotalAssets.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "bursar", got.ClosedBy)

	_, err = s.Get(ctx, "FINANCIAL_YEAR_CLOSE__s1__2025-2026")
	require.NoError(t, err, "record stored under the structured key")

	require.NoError(t, g.Reopen(ctx, "s1", "2025-2026"))
	closed, err = g.IsFinancialYearClosed(ctx, "s1", "2025-2026")
	require.NoError(t, err)
	assert.False(t, closed)

	assert.ErrorIs(t, g.Reopen(ctx, "s1", "2025-2026"), ErrNotClosed)
}

func TestLegacyFlag(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"bool true", `true`, true},
		{"string true", `"true"`, true},
		{"string false", `"false"`, false},
		{"bool false", `false`, false},
		{"object", `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := memory.New()
			_, err := s.Put(ctx, "FINANCIAL_YEAR_CLOSED__s1__2024", []byte(tt.data), store.AnyVersion)
			require.NoError(t, err)

			closed, err := New(s).IsFinancialYearClosed(ctx, "s1", "2024")
			require.NoError(t, err)
			assert.Equal(t, tt.want, closed)
		})
	}
}

func TestStructuredRecordWinsOverLegacyFlag(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.Put(ctx, "FINANCIAL_YEAR_CLOSED__s1__2024", []byte(`"true"`), store.AnyVersion)
	require.NoError(t, err)
	_, err = s.Put(ctx, "FINANCIAL_YEAR_CLOSE__s1__2024", []byte(`{"isClosed":false}`), store.AnyVersion)
	require.NoError(t, err)

	closed, err := New(s).IsFinancialYearClosed(ctx, "s1", "2024")
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestReopenClearsLegacyFlag(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.Put(ctx, "FINANCIAL_YEAR_CLOSED__s1__2024", []byte(`true`), store.AnyVersion)
	require.NoError(t, err)

	g := New(s)
	require.NoError(t, g.Reopen(ctx, "s1", "2024"))
	_, err = s.Get(ctx, "FINANCIAL_YEAR_CLOSED__s1__2024")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
