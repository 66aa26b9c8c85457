// Package ports declares the storage and messaging boundaries of the ledger.
package ports

import (
	"context"

	"contabils/internal/core"
)

// Order selects the row order of a transaction listing.
type Order int

const (
	// NewestFirst orders by date desc, then id desc.
	NewestFirst Order = iota
	// Chronological orders by date asc, then id asc.
	Chronological
)

// TransactionQuery scopes a listing to one owner and month.
type TransactionQuery struct {
	OwnerID  string
	Month    string
	Category string // exact match; empty means all
	Order    Order
}

type (
	CategoryStore interface {
		// ListCategories returns active categories ordered by name. An empty
		// kind lists every active category.
		ListCategories(ctx context.Context, kind core.Kind) ([]core.Category, error)
		// CreateCategory fails with core.ErrDuplicateName on an exact name clash.
		CreateCategory(ctx context.Context, c core.Category) error
		// SeedCategories inserts the categories whose names are missing.
		SeedCategories(ctx context.Context, cats []core.Category) error
	}

	LedgerStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
		ListTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, error)
		// DeleteTransaction removes the row only when id and owner both match,
		// otherwise it returns core.ErrNotFoundOrForbidden.
		DeleteTransaction(ctx context.Context, ownerID string, id int64) error
		// MonthTotals sums income and expense cents; both are 0 for an empty month.
		MonthTotals(ctx context.Context, ownerID, month string) (income, expense int64, err error)
	}

	// Store is what a data backend provides.
	Store interface {
		CategoryStore
		LedgerStore
		Ping(ctx context.Context) error
		Close() error
	}

	// EventPublisher receives ledger changes after they are committed.
	EventPublisher interface {
		PublishTransactionCreated(ctx context.Context, t core.Transaction) error
		PublishTransactionDeleted(ctx context.Context, ownerID string, id int64) error
	}
)
