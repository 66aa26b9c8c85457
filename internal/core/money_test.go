package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"45,90", 4590, true},
		{"45.90", 4590, true},
		{"0.01", 1, true},
		{"1.005", 101, true},
		{"12.345", 1235, true},
		{"12,344", 1234, true},
		{"0.005", 1, true},
		{" 2.50 ", 250, true},
		{"0.004", 0, false},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1.234,56", 0, false},
		{"1,2,3", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
		{"1e400", 0, false},
		{"1e70000000", 0, false},
		{"1E2", 0, false},
		{"+5", 0, false},
		{".5", 0, false},
		{"5.", 0, false},
		{"92233720368547758,07", 0, false},
		{"100000000000", 0, false},
		{"99999999999.99", 9_999_999_999_999, true},
		{"99999999999,995", MaxAmountCents, true},
		{"1.12345678901", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmountToCents(tc.in)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidAmount)
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.out, got)
		})
	}
}

func TestParseAmountToCents_ExponentIsCheap(t *testing.T) {
	start := time.Now()
	_, err := ParseAmountToCents("1e999999999")
	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestTotals_AtMaxAmount(t *testing.T) {
	rows := make([]Transaction, 0, 5)
	for i := 0; i < 4; i++ {
		rows = append(rows, Transaction{Type: TypeIncome, Amount: Money{Cents: MaxAmountCents}})
	}
	rows = append(rows, Transaction{Type: TypeExpense, Amount: Money{Cents: MaxAmountCents}})

	sum := Totals("2024-03", rows)
	assert.Equal(t, 4*MaxAmountCents, sum.Income)
	assert.Equal(t, MaxAmountCents, sum.Expense)
	assert.Equal(t, 3*MaxAmountCents, sum.Balance)
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 45,90", FormatBRL(4590))
	assert.Equal(t, "R$ 0,05", FormatBRL(5))
	assert.Equal(t, "-R$ 12,00", FormatBRL(-1200))
}

func TestMoneyFloat(t *testing.T) {
	assert.InDelta(t, 45.9, Money{Cents: 4590}.Float(), 1e-9)
}
