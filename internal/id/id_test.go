package id

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New("acc")
	b := New("acc")
	assert.True(t, strings.HasPrefix(a, "acc_"))
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func TestFormatEntryID(t *testing.T) {
	tests := []struct {
		year, month, seq int
		want             string
	}{
		{2025, 1, 1, "2025-01-001"},
		{2025, 12, 99, "2025-12-099"},
		{2025, 1, 123, "2025-01-123"},
	}
	for _, tt := range tests {
		got := FormatEntryID(tt.year, tt.month, tt.seq)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseEntryID(t *testing.T) {
	tests := []struct {
		input               string
		wantYear, wantMonth int
		wantSeq             int
	}{
		{"2025-01-001", 2025, 1, 1},
		{"2025-12-099", 2025, 12, 99},
	}
	for _, tt := range tests {
		year, month, seq, err := ParseEntryID(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.wantYear, year)
		assert.Equal(t, tt.wantMonth, month)
		assert.Equal(t, tt.wantSeq, seq)
	}
}

func TestParseEntryID_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"not-valid",
		"2025-01",
		"xxxx-01-001",
	}
	for _, input := range badInputs {
		_, _, _, err := ParseEntryID(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestChildCode(t *testing.T) {
	assert.Equal(t, "1101", ChildCode("11", 1))
	assert.Equal(t, "1199", ChildCode("11", 99))
	assert.Equal(t, "11100", ChildCode("11", 100))
}

func TestLeadingInt(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"07", 7, true},
		{"12x", 12, true},
		{"x1", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		n, ok := LeadingInt(tt.in)
		assert.Equal(t, tt.wantOK, ok, "LeadingInt(%q)", tt.in)
		assert.Equal(t, tt.want, n, "LeadingInt(%q)", tt.in)
	}
}

func TestCompareCodes(t *testing.T) {
	codes := []string{"10", "9", "1102", "1", "11", "2", "x"}
	sort.Slice(codes, func(i, j int) bool { return CompareCodes(codes[i], codes[j]) < 0 })
	assert.Equal(t, []string{"1", "2", "9", "10", "11", "1102", "x"}, codes)

	assert.Equal(t, 0, CompareCodes("42", "42"))
	assert.Less(t, CompareCodes("1", "01"), 0)
}
