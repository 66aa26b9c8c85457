// Package storetest holds the behaviour every ports.Store must share. Each
// backend's tests call Run with its own constructor.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"contabils/internal/core"
	"contabils/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the contract suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("create and list", func(t *testing.T) { testCreateAndList(t, newStore(t)) })
	t.Run("chronological order", func(t *testing.T) { testChronological(t, newStore(t)) })
	t.Run("delete scoped to owner", func(t *testing.T) { testDeleteScoped(t, newStore(t)) })
	t.Run("month totals", func(t *testing.T) { testMonthTotals(t, newStore(t)) })
	t.Run("concurrent creates", func(t *testing.T) { testConcurrentCreates(t, newStore(t)) })
	t.Run("totals at max amount", func(t *testing.T) { testMaxAmountTotals(t, newStore(t)) })
}

func tx(owner, typ, cat, date string, cents int64) core.Transaction {
	t := core.Transaction{
		OwnerID:  owner,
		Type:     core.TxType(typ),
		Amount:   core.Money{Cents: cents},
		Category: cat,
	}
	t.SetDate(date)
	return t
}

func testCategories(t *testing.T, s ports.Store) {
	ctx := context.Background()
	require.NoError(t, s.SeedCategories(ctx, core.DefaultCategories()))
	require.NoError(t, s.SeedCategories(ctx, core.DefaultCategories()))

	all, err := s.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, len(core.DefaultCategories()))
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Name, all[i].Name)
	}

	again, err := s.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, all, again)

	require.NoError(t, s.CreateCategory(ctx, core.Category{Name: "Presentes", Emoji: "🎁", Kind: core.KindBoth}))
	err = s.CreateCategory(ctx, core.Category{Name: "Presentes", Emoji: "🎁", Kind: core.KindExpense})
	assert.ErrorIs(t, err, core.ErrDuplicateName)
	require.NoError(t, s.CreateCategory(ctx, core.Category{Name: "presentes", Emoji: "🎁", Kind: core.KindExpense}))

	income, err := s.ListCategories(ctx, core.KindIncome)
	require.NoError(t, err)
	names := map[string]core.Kind{}
	for _, c := range income {
		names[c.Name] = c.Kind
		assert.True(t, c.IsActive)
		assert.Contains(t, []core.Kind{core.KindIncome, core.KindBoth}, c.Kind)
	}
	assert.Contains(t, names, "Salário")
	assert.Contains(t, names, "Presentes")
	assert.NotContains(t, names, "Mercado")
}

func testCreateAndList(t *testing.T, s ports.Store) {
	ctx := context.Background()
	id1, err := s.CreateTransaction(ctx, tx("u1", "expense", "Mercado", "2024-03-01", 4590))
	require.NoError(t, err)
	id2, err := s.CreateTransaction(ctx, tx("u1", "income", "Salário", "2024-03-05", 500000))
	require.NoError(t, err)
	id3, err := s.CreateTransaction(ctx, tx("u1", "expense", "Mercado", "2024-03-01", 1000))
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, tx("u1", "expense", "Mercado", "2024-04-01", 1))
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, tx("u2", "expense", "Mercado", "2024-03-02", 7))
	require.NoError(t, err)

	assert.Less(t, id1, id2)
	assert.Less(t, id2, id3)

	rows, err := s.ListTransactions(ctx, ports.TransactionQuery{OwnerID: "u1", Month: "2024-03"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{id2, id3, id1}, ids(rows))

	first := rows[2]
	assert.Equal(t, "u1", first.OwnerID)
	assert.Equal(t, core.TypeExpense, first.Type)
	assert.Equal(t, int64(4590), first.Amount.Cents)
	assert.Equal(t, "2024-03-01", first.Date)
	assert.Equal(t, "2024-03", first.MonthKey)

	filtered, err := s.ListTransactions(ctx, ports.TransactionQuery{OwnerID: "u1", Month: "2024-03", Category: "Mercado"})
	require.NoError(t, err)
	assert.Equal(t, []int64{id3, id1}, ids(filtered))

	none, err := s.ListTransactions(ctx, ports.TransactionQuery{OwnerID: "u1", Month: "2024-03", Category: "mercado"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testChronological(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a, _ := s.CreateTransaction(ctx, tx("u1", "expense", "Casa", "2024-05-10", 100))
	b, _ := s.CreateTransaction(ctx, tx("u1", "expense", "Casa", "2024-05-02", 100))
	c, _ := s.CreateTransaction(ctx, tx("u1", "income", "Vendas", "2024-05-10", 100))

	rows, err := s.ListTransactions(ctx, ports.TransactionQuery{OwnerID: "u1", Month: "2024-05", Order: ports.Chronological})
	require.NoError(t, err)
	assert.Equal(t, []int64{b, a, c}, ids(rows))
}

func testDeleteScoped(t *testing.T, s ports.Store) {
	ctx := context.Background()
	id, err := s.CreateTransaction(ctx, tx("owner", "expense", "Pet", "2024-03-01", 2500))
	require.NoError(t, err)

	err = s.DeleteTransaction(ctx, "intruder", id)
	assert.ErrorIs(t, err, core.ErrNotFoundOrForbidden)

	rows, err := s.ListTransactions(ctx, ports.TransactionQuery{OwnerID: "owner", Month: "2024-03"})
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids(rows))

	require.NoError(t, s.DeleteTransaction(ctx, "owner", id))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "owner", id), core.ErrNotFoundOrForbidden)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "owner", id+1000), core.ErrNotFoundOrForbidden)
}

func testMonthTotals(t *testing.T, s ports.Store) {
	ctx := context.Background()
	income, expense, err := s.MonthTotals(ctx, "u1", "2030-01")
	require.NoError(t, err)
	assert.Zero(t, income)
	assert.Zero(t, expense)

	_, _ = s.CreateTransaction(ctx, tx("u1", "expense", "Mercado", "2024-03-01", 4590))
	_, _ = s.CreateTransaction(ctx, tx("u1", "income", "Freela", "2024-03-09", 1000))
	_, _ = s.CreateTransaction(ctx, tx("u1", "expense", "Lazer", "2024-03-31", 10))
	_, _ = s.CreateTransaction(ctx, tx("u2", "income", "Freela", "2024-03-09", 99999))

	income, expense, err = s.MonthTotals(ctx, "u1", "2024-03")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), income)
	assert.Equal(t, int64(4600), expense)
}

func testMaxAmountTotals(t *testing.T, s ports.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.CreateTransaction(ctx, tx("u1", "income", "Salário", "2024-03-05", core.MaxAmountCents))
		require.NoError(t, err)
	}
	_, err := s.CreateTransaction(ctx, tx("u1", "expense", "Casa", "2024-03-06", core.MaxAmountCents))
	require.NoError(t, err)

	income, expense, err := s.MonthTotals(ctx, "u1", "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 3*core.MaxAmountCents, income)
	assert.Equal(t, core.MaxAmountCents, expense)
}

func testConcurrentCreates(t *testing.T, s ports.Store) {
	ctx := context.Background()
	const n = 8
	var wg sync.WaitGroup
	got := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = s.CreateTransaction(ctx, tx("u1", "expense", "Casa", "2024-06-01", int64(i+1)))
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], fmt.Sprintf("create %d", i))
		assert.False(t, seen[got[i]], "duplicate id %d", got[i])
		seen[got[i]] = true
	}

	rows, err := s.ListTransactions(ctx, ports.TransactionQuery{OwnerID: "u1", Month: "2024-06"})
	require.NoError(t, err)
	assert.Len(t, rows, n)
}

func ids(rows []core.Transaction) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
