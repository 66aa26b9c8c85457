package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"contabils/internal/core"
	"contabils/internal/ports"
)

// TransactionInput is the raw, unvalidated form of a new transaction.
type TransactionInput struct {
	Type        string
	Amount      string
	Category    string
	Description string
	Date        string
}

// LedgerService validates and persists ledger entries, then announces the
// change to the event publisher when one is configured.
type LedgerService struct {
	store  ports.LedgerStore
	events ports.EventPublisher
}

// NewLedgerService returns a service; events may be nil.
func NewLedgerService(store ports.LedgerStore, events ports.EventPublisher) *LedgerService {
	return &LedgerService{store: store, events: events}
}

// Validate converts input into a transaction owned by uid. Checks run in a
// fixed order: type, amount, category, date.
func Validate(uid string, in TransactionInput) (core.Transaction, error) {
	typ, err := core.ParseTxType(strings.TrimSpace(in.Type))
	if err != nil {
		return core.Transaction{}, err
	}
	cents, err := core.ParseAmountToCents(in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return core.Transaction{}, core.ErrInvalidCategory
	}
	date, err := core.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		OwnerID:     uid,
		Type:        typ,
		Amount:      core.Money{Cents: cents},
		Category:    category,
		Description: strings.TrimSpace(in.Description),
	}
	t.SetDate(date)
	return t, nil
}

// CreateTransaction validates before touching the store, so invalid input
// never produces a partial write.
func (s *LedgerService) CreateTransaction(ctx context.Context, uid string, in TransactionInput) (core.Transaction, error) {
	t, err := Validate(uid, in)
	if err != nil {
		return core.Transaction{}, err
	}

	id, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	t.ID = id

	if s.events != nil {
		if err := s.events.PublishTransactionCreated(ctx, t); err != nil {
			// The row is committed; the mirror catches up on the next event.
			slog.ErrorContext(ctx, "Failed to publish transaction event", "id", id, "error", err)
		}
	}
	return t, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, uid, month, category string) ([]core.Transaction, error) {
	return s.list(ctx, ports.TransactionQuery{
		OwnerID:  uid,
		Month:    month,
		Category: strings.TrimSpace(category),
		Order:    ports.NewestFirst,
	})
}

// Extract returns the statement rows for a month, oldest first.
func (s *LedgerService) Extract(ctx context.Context, uid, month, category string) ([]core.Transaction, error) {
	return s.list(ctx, ports.TransactionQuery{
		OwnerID:  uid,
		Month:    month,
		Category: strings.TrimSpace(category),
		Order:    ports.Chronological,
	})
}

func (s *LedgerService) list(ctx context.Context, q ports.TransactionQuery) ([]core.Transaction, error) {
	if _, err := core.ParseMonth(q.Month); err != nil {
		return nil, err
	}
	rows, err := s.store.ListTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return rows, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, uid string, id int64) error {
	if id <= 0 {
		return core.ErrInvalidID
	}
	if err := s.store.DeleteTransaction(ctx, uid, id); err != nil {
		if errors.Is(err, core.ErrNotFoundOrForbidden) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	if s.events != nil {
		if err := s.events.PublishTransactionDeleted(ctx, uid, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction event", "id", id, "error", err)
		}
	}
	return nil
}

// Summary returns the month totals for uid. An empty month is all zeros.
func (s *LedgerService) Summary(ctx context.Context, uid, month string) (core.Summary, error) {
	if _, err := core.ParseMonth(month); err != nil {
		return core.Summary{}, err
	}
	income, expense, err := s.store.MonthTotals(ctx, uid, month)
	if err != nil {
		return core.Summary{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return core.NewSummary(month, income, expense), nil
}
