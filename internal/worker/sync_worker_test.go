package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"contabils/internal/amqp"
	"contabils/internal/core"
	applog "contabils/internal/log"
	"contabils/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenMirror struct{}

func (brokenMirror) AppendTransaction(context.Context, core.Transaction) (string, error) {
	return "", errors.New("quota exceeded")
}

func (brokenMirror) DeleteTransaction(context.Context, string, int64) error {
	return errors.New("quota exceeded")
}

func quiet() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewSyncWorker(mirror, quiet())

	tx := core.Transaction{ID: 5, OwnerID: "u1", Type: core.TypeIncome, Amount: core.Money{Cents: 100}, Category: "Vendas"}
	tx.SetDate("2024-03-10")

	require.NoError(t, w.HandleEvent(ctx, amqp.NewCreatedEvent(tx)))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewCreatedEvent(tx)))
	require.Len(t, mirror.Rows(), 1)
	assert.Equal(t, tx, mirror.Rows()[0])

	require.NoError(t, w.HandleEvent(ctx, amqp.NewDeletedEvent("u1", 5)))
	assert.Empty(t, mirror.Rows())

	created, deleted, failed := w.Stats()
	assert.Equal(t, int64(2), created)
	assert.Equal(t, int64(1), deleted)
	assert.Zero(t, failed)

	assert.Error(t, w.HandleEvent(ctx, &amqp.LedgerEvent{Kind: "transaction.updated", OwnerID: "u1", TransactionID: 1}))
}

func TestHandleEventLogsSignedAmount(t *testing.T) {
	var buf bytes.Buffer
	w := NewSyncWorker(memory.New(), applog.New(applog.Config{Format: "json", Output: &buf}))

	tx := core.Transaction{ID: 7, OwnerID: "u1", Type: core.TypeExpense, Amount: core.Money{Cents: 4590}, Category: "Mercado"}
	tx.SetDate("2024-03-01")
	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewCreatedEvent(tx)))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "-R$ 45,90", line[applog.FieldAmount])
	assert.Equal(t, "Mirror updated", line["msg"])
}

func TestHandleEventFailureRequeues(t *testing.T) {
	w := NewSyncWorker(brokenMirror{}, quiet())
	err := w.HandleEvent(context.Background(), amqp.NewDeletedEvent("u1", 9))
	assert.ErrorContains(t, err, "quota exceeded")
	_, _, failed := w.Stats()
	assert.Equal(t, int64(1), failed)
}
