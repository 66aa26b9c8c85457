// Package memory is an in-process ledger mirror for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"contabils/internal/core"
	ports "contabils/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	rows map[int64]core.Transaction
	seq  int
	refs map[int64]string
}

var _ ports.LedgerMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: map[int64]core.Transaction{}, refs: map[int64]string{}}
}

func (m *Mirror) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	if t.ID <= 0 {
		return "", core.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref, ok := m.refs[t.ID]; ok {
		return ref, nil
	}
	m.seq++
	ref := fmt.Sprintf("mem:%d", m.seq)
	m.rows[t.ID] = t
	m.refs[t.ID] = ref
	return ref, nil
}

func (m *Mirror) DeleteTransaction(_ context.Context, ownerID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.rows[id]; ok && t.OwnerID == ownerID {
		delete(m.rows, id)
		delete(m.refs, id)
	}
	return nil
}

// Rows returns the mirrored transactions ordered by id.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Transaction, 0, len(m.rows))
	for _, t := range m.rows {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
