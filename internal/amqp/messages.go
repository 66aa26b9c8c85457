package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contabils/internal/core"
)

// Event kinds, also used as the AMQP message type.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionDeleted = "transaction.deleted"
)

// TransactionPayload is the wire form of a created transaction.
type TransactionPayload struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date_iso"`
	MonthKey    string `json:"month_key"`
}

// LedgerEvent announces a committed ledger change. Created events carry the
// full row so consumers never read the database.
type LedgerEvent struct {
	Kind          string              `json:"kind"`
	OwnerID       string              `json:"owner_id"`
	TransactionID int64               `json:"transaction_id"`
	Transaction   *TransactionPayload `json:"transaction,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

func NewCreatedEvent(t core.Transaction) *LedgerEvent {
	return &LedgerEvent{
		Kind:          EventTransactionCreated,
		OwnerID:       t.OwnerID,
		TransactionID: t.ID,
		Transaction: &TransactionPayload{
			ID:          t.ID,
			Type:        string(t.Type),
			AmountCents: t.Amount.Cents,
			Category:    t.Category,
			Description: t.Description,
			Date:        t.Date,
			MonthKey:    t.MonthKey,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewDeletedEvent(ownerID string, id int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:          EventTransactionDeleted,
		OwnerID:       ownerID,
		TransactionID: id,
		Timestamp:     time.Now().UTC(),
	}
}

// ToTransaction rebuilds the domain row of a created event.
func (e *LedgerEvent) ToTransaction() core.Transaction {
	p := e.Transaction
	t := core.Transaction{
		ID:          p.ID,
		OwnerID:     e.OwnerID,
		Type:        core.TxType(p.Type),
		Amount:      core.Money{Cents: p.AmountCents},
		Category:    p.Category,
		Description: p.Description,
	}
	t.SetDate(p.Date)
	return t
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

var errMalformedEvent = errors.New("malformed ledger event")

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if e.OwnerID == "" || e.TransactionID <= 0 {
		return nil, fmt.Errorf("%w: missing owner or id", errMalformedEvent)
	}
	switch e.Kind {
	case EventTransactionCreated:
		if e.Transaction == nil || e.Transaction.ID != e.TransactionID {
			return nil, fmt.Errorf("%w: created event without matching row", errMalformedEvent)
		}
	case EventTransactionDeleted:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", errMalformedEvent, e.Kind)
	}
	return &e, nil
}
