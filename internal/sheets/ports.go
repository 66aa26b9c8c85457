// Package sheets mirrors the ledger into a spreadsheet.
package sheets

import (
	"context"

	"contabils/internal/core"
)

// LedgerMirror keeps one row per transaction, keyed by transaction id.
// Both operations are idempotent so redelivered events are harmless.
type LedgerMirror interface {
	// AppendTransaction adds the row unless one with the same id exists.
	AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	// DeleteTransaction clears the row of id owned by ownerID. A missing row
	// is not an error.
	DeleteTransaction(ctx context.Context, ownerID string, id int64) error
}
