// Package memory is an in-process ports.Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"contabils/internal/core"
	"contabils/internal/ports"
)

type Store struct {
	mu     sync.Mutex
	cats   map[string]core.Category
	items  []core.Transaction
	nextID int64
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{cats: make(map[string]core.Category), nextID: 1}
}

// NewSeeded returns a store holding the default catalog.
func NewSeeded() *Store {
	s := New()
	_ = s.SeedCategories(context.Background(), core.DefaultCategories())
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListCategories(_ context.Context, kind core.Kind) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.cats))
	for _, c := range s.cats {
		if c.IsActive && c.Kind.Matches(kind) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cats[c.Name]; ok {
		return core.ErrDuplicateName
	}
	c.IsActive = true
	s.cats[c.Name] = c
	return nil
}

func (s *Store) SeedCategories(_ context.Context, cats []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cats {
		if _, ok := s.cats[c.Name]; ok {
			continue
		}
		c.IsActive = true
		s.cats[c.Name] = c
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID
	s.nextID++
	s.items = append(s.items, t)
	return t.ID, nil
}

func (s *Store) ListTransactions(_ context.Context, q ports.TransactionQuery) ([]core.Transaction, error) {
	s.mu.Lock()
	out := make([]core.Transaction, 0)
	for _, t := range s.items {
		if t.OwnerID != q.OwnerID || t.MonthKey != q.Month {
			continue
		}
		if q.Category != "" && t.Category != q.Category {
			continue
		}
		out = append(out, t)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.Order == ports.Chronological {
			if a.Date != b.Date {
				return a.Date < b.Date
			}
			return a.ID < b.ID
		}
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (s *Store) DeleteTransaction(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id && t.OwnerID == ownerID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFoundOrForbidden
}

func (s *Store) MonthTotals(_ context.Context, ownerID, month string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var income, expense int64
	for _, t := range s.items {
		if t.OwnerID != ownerID || t.MonthKey != month {
			continue
		}
		switch t.Type {
		case core.TypeIncome:
			income += t.Amount.Cents
		case core.TypeExpense:
			expense += t.Amount.Cents
		}
	}
	return income, expense, nil
}
