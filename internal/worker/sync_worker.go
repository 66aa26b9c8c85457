// Package worker applies ledger events to the spreadsheet mirror.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"contabils/internal/amqp"
	"contabils/internal/core"
	applog "contabils/internal/log"
	"contabils/internal/sheets"
)

// SyncWorker mirrors created and deleted transactions.
type SyncWorker struct {
	mirror sheets.LedgerMirror
	logger *applog.Logger

	created atomic.Int64
	deleted atomic.Int64
	failed  atomic.Int64
}

func NewSyncWorker(mirror sheets.LedgerMirror, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{mirror: mirror, logger: logger.WithComponent(applog.ComponentWorker)}
}

// HandleEvent is an amqp.Handler. Errors make the broker redeliver.
func (w *SyncWorker) HandleEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	fields := applog.NewFields().
		WithOperation(applog.OpMirror).
		WithEvent(e.Kind, e.TransactionID, e.OwnerID)

	var err error
	switch e.Kind {
	case amqp.EventTransactionCreated:
		tx := e.ToTransaction()
		fields[applog.FieldAmount] = core.FormatBRL(tx.Signed())
		_, err = w.mirror.AppendTransaction(ctx, tx)
		if err == nil {
			w.created.Add(1)
		}
	case amqp.EventTransactionDeleted:
		err = w.mirror.DeleteTransaction(ctx, e.OwnerID, e.TransactionID)
		if err == nil {
			w.deleted.Add(1)
		}
	default:
		// LedgerEventFromJSON rejects unknown kinds before they get here.
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}

	if err != nil {
		w.failed.Add(1)
		applog.NewStructuredLogger(w.logger).LogError(ctx, "Mirror update failed", err, applog.ComponentWorker, applog.OpMirror, fields)
		return fmt.Errorf("mirror %s %d: %w", e.Kind, e.TransactionID, err)
	}
	w.logger.InfoContext(ctx, "Mirror updated", fields.ToSlice()...)
	return nil
}

// Stats reports handled event counts.
func (w *SyncWorker) Stats() (created, deleted, failed int64) {
	return w.created.Load(), w.deleted.Load(), w.failed.Load()
}
