package journal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpaypro/ledger/internal/model"
)

func TestEntriesRoundTrip(t *testing.T) {
	log := NewLog(nil, nil)
	e1, err := log.Append(model.JournalEntry{Date: date(2025, 9, 1), Description: "Tuition, term 1", FiscalYear: "2025-2026", Lines: pair("bank", "fees", "1200")})
	require.NoError(t, err)
	e2, err := log.Append(model.JournalEntry{Date: date(2025, 9, 2), Description: "Bus", Lines: []model.JournalLine{
		{AccountID: "bank", Debit: dec("30"), Note: "cash"},
		{AccountID: "bus", Credit: dec("20")},
		{AccountID: "fees", Credit: dec("10")},
	}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, []model.JournalEntry{e1, e2}))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))

	got, err := ReadEntries(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, e1.ID, got[0].ID)
	assert.Equal(t, "Tuition, term 1", got[0].Description)
	assert.Equal(t, "2025-2026", got[0].FiscalYear)
	assert.Equal(t, model.StatusDraft, got[0].Status)
	assert.True(t, got[0].Date.Equal(e1.Date))
	require.Len(t, got[1].Lines, 3)
	assert.Equal(t, "cash", got[1].Lines[0].Note)
	assert.True(t, got[1].Lines[2].Credit.Equal(dec("10")))
	assert.True(t, got[1].IsBalanced)
}

func TestReadEntries_BadRow(t *testing.T) {
	in := Header + "\n2025-01-001,not-a-date,,DRAFT,x,bank,1.00,,\n"
	_, err := ReadEntries(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}
