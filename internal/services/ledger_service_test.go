package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"contabils/internal/core"
	"contabils/internal/ports"
	"contabils/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	kind  string
	owner string
	id    int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (f *fakePublisher) PublishTransactionCreated(_ context.Context, t core.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{"created", t.OwnerID, t.ID})
	return f.err
}

func (f *fakePublisher) PublishTransactionDeleted(_ context.Context, owner string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{"deleted", owner, id})
	return f.err
}

type failingStore struct{ ports.LedgerStore }

func (failingStore) CreateTransaction(context.Context, core.Transaction) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingStore) MonthTotals(context.Context, string, string) (int64, int64, error) {
	return 0, 0, errors.New("connection reset")
}

func TestValidate(t *testing.T) {
	base := TransactionInput{Type: "expense", Amount: "45,90", Category: "Mercado", Date: "2024-03-01"}

	tests := []struct {
		name   string
		mutate func(*TransactionInput)
		want   error
	}{
		{"valid", func(*TransactionInput) {}, nil},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, core.ErrInvalidType},
		{"bad amount", func(in *TransactionInput) { in.Amount = "abc" }, core.ErrInvalidAmount},
		{"zero amount", func(in *TransactionInput) { in.Amount = "0" }, core.ErrInvalidAmount},
		{"empty category", func(in *TransactionInput) { in.Category = "  " }, core.ErrInvalidCategory},
		{"bad date", func(in *TransactionInput) { in.Date = "01/03/2024" }, core.ErrInvalidDate},
		{"type checked first", func(in *TransactionInput) { in.Type = ""; in.Amount = "" }, core.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			tx, err := Validate("u1", in)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.ErrorIs(t, err, core.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(4590), tx.Amount.Cents)
			assert.Equal(t, "2024-03", tx.MonthKey)
			assert.Equal(t, "u1", tx.OwnerID)
		})
	}
}

func TestLedgerService_ExampleScenario(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub)

	tx, err := svc.CreateTransaction(ctx, "u1", TransactionInput{
		Type: "expense", Amount: "45,90", Category: "Mercado", Date: "2024-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4590), tx.Amount.Cents)

	rows, err := svc.ListTransactions(ctx, "u1", "2024-03", "Mercado")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(4590), rows[0].Amount.Cents)
	assert.Equal(t, "2024-03", rows[0].MonthKey)

	sum, err := svc.Summary(ctx, "u1", "2024-03")
	require.NoError(t, err)
	assert.Equal(t, core.Summary{Month: "2024-03", Income: 0, Expense: 4590, Balance: -4590}, sum)

	assert.Equal(t, []recordedEvent{{"created", "u1", tx.ID}}, pub.events)
}

func TestLedgerService_DotAndCommaAgree(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil)
	for _, amount := range []string{"10.05", "10,05"} {
		_, err := svc.CreateTransaction(ctx, "u1", TransactionInput{
			Type: "income", Amount: amount, Category: "Vendas", Date: "2024-07-15",
		})
		require.NoError(t, err)
	}
	rows, err := svc.ListTransactions(ctx, "u1", "2024-07", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].Amount, rows[1].Amount)
	assert.Equal(t, int64(1005), rows[0].Amount.Cents)
}

func TestLedgerService_EmptyMonthSummary(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	sum, err := svc.Summary(context.Background(), "u1", "1999-01")
	require.NoError(t, err)
	assert.Equal(t, core.Summary{Month: "1999-01"}, sum)
}

func TestLedgerService_LargestAmountsKeepTotalsConsistent(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil)
	for _, in := range []TransactionInput{
		{Type: "income", Amount: "99999999999,995", Category: "Salário", Date: "2024-03-01"},
		{Type: "income", Amount: "99999999999,995", Category: "Salário", Date: "2024-03-02"},
		{Type: "expense", Amount: "1,00", Category: "Casa", Date: "2024-03-03"},
	} {
		_, err := svc.CreateTransaction(ctx, "u1", in)
		require.NoError(t, err)
	}

	_, err := svc.CreateTransaction(ctx, "u1", TransactionInput{
		Type: "income", Amount: "92233720368547758,07", Category: "Salário", Date: "2024-03-04",
	})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	sum, err := svc.Summary(ctx, "u1", "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 2*core.MaxAmountCents, sum.Income)
	assert.Equal(t, 2*core.MaxAmountCents-100, sum.Balance)

	rows, err := svc.Extract(ctx, "u1", "2024-03", "")
	require.NoError(t, err)
	assert.Equal(t, sum, core.Totals("2024-03", rows))
}

func TestLedgerService_InvalidInputNeverReachesStore(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, nil)
	_, err := svc.CreateTransaction(context.Background(), "u1", TransactionInput{
		Type: "expense", Amount: "-3", Category: "Casa", Date: "2024-03-01",
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	income, expense, err := store.MonthTotals(context.Background(), "u1", "2024-03")
	require.NoError(t, err)
	assert.Zero(t, income+expense)
}

func TestLedgerService_DeleteOwnership(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub)

	tx, err := svc.CreateTransaction(ctx, "owner", TransactionInput{
		Type: "expense", Amount: "12", Category: "Pet", Date: "2024-03-02",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteTransaction(ctx, "other", tx.ID), core.ErrNotFoundOrForbidden)
	rows, err := svc.ListTransactions(ctx, "owner", "2024-03", "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, svc.DeleteTransaction(ctx, "owner", tx.ID))
	assert.ErrorIs(t, svc.DeleteTransaction(ctx, "owner", 0), core.ErrInvalidID)

	require.Len(t, pub.events, 2)
	assert.Equal(t, recordedEvent{"deleted", "owner", tx.ID}, pub.events[1])
}

func TestLedgerService_PublishFailureIsNotFatal(t *testing.T) {
	svc := NewLedgerService(memory.New(), &fakePublisher{err: errors.New("broker down")})
	tx, err := svc.CreateTransaction(context.Background(), "u1", TransactionInput{
		Type: "income", Amount: "1", Category: "Cashback", Date: "2024-03-02",
	})
	require.NoError(t, err)
	assert.NotZero(t, tx.ID)
}

func TestLedgerService_StoreErrorsAreClassified(t *testing.T) {
	svc := NewLedgerService(failingStore{}, nil)
	_, err := svc.CreateTransaction(context.Background(), "u1", TransactionInput{
		Type: "income", Amount: "1", Category: "Cashback", Date: "2024-03-02",
	})
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	_, err = svc.Summary(context.Background(), "u1", "2024-03")
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestLedgerService_RejectsBadMonth(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	_, err := svc.ListTransactions(context.Background(), "u1", "2024/03", "")
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
	_, err = svc.Summary(context.Background(), "u1", "")
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestLedgerService_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil)

	var wg sync.WaitGroup
	ids := make(chan int64, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := svc.CreateTransaction(ctx, "u1", TransactionInput{
				Type: "expense", Amount: "5", Category: "Casa", Date: "2024-08-01",
			})
			assert.NoError(t, err)
			ids <- tx.ID
		}()
	}
	wg.Wait()
	close(ids)

	a, b := <-ids, <-ids
	assert.NotEqual(t, a, b)

	rows, err := svc.ListTransactions(ctx, "u1", "2024-08", "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
