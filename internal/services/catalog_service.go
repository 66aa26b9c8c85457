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

// CatalogService manages the global category catalog.
type CatalogService struct {
	store ports.CategoryStore
}

func NewCatalogService(store ports.CategoryStore) *CatalogService {
	return &CatalogService{store: store}
}

// Seed inserts the default catalog entries that are missing.
func (s *CatalogService) Seed(ctx context.Context) error {
	if err := s.store.SeedCategories(ctx, core.DefaultCategories()); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	return nil
}

// ListCategories lists active categories. kindFilter income or expense also
// includes categories of kind both; anything else lists everything.
func (s *CatalogService) ListCategories(ctx context.Context, kindFilter string) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx, core.FilterKind(kindFilter))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return cats, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, name, emoji, kind string) error {
	c := core.Category{
		Name:     strings.TrimSpace(name),
		Emoji:    strings.TrimSpace(emoji),
		Kind:     core.Kind(strings.TrimSpace(kind)),
		IsActive: true,
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if err := s.store.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, core.ErrDuplicateName) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	slog.InfoContext(ctx, "Category created", "name", c.Name, "kind", c.Kind)
	return nil
}
