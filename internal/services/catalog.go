package services

import (
	"context"

	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/samber/lo"
)

// Catalog returns a copy of the reusable items.
func (s *Session) Catalog() []models.CatalogItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CatalogItem, len(s.catalog))
	copy(out, s.catalog)
	return out
}

func (s *Session) AddCatalogItem(ctx context.Context, patch models.CatalogPatch) (models.CatalogItem, error) {
	if trimmed(patch.Description) == "" {
		return models.CatalogItem{}, ierr.NewError("catalog description is empty").
			WithHint("A catalog item needs a description").
			Mark(ierr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item := patch.Apply(models.CatalogItem{ID: models.NewID(models.PrefixCatalog)})
	if err := s.policy.Check(item.ToLineItem()); err != nil {
		return models.CatalogItem{}, err
	}
	s.catalog = append(s.catalog, item)
	s.persist(ctx, models.KeyCatalog)
	return item, nil
}

func (s *Session) UpdateCatalogItem(ctx context.Context, id string, patch models.CatalogPatch) (models.CatalogItem, error) {
	if patch.Description != nil && trimmed(patch.Description) == "" {
		return models.CatalogItem{}, ierr.NewError("catalog description is empty").
			WithHint("A catalog item needs a description").
			Mark(ierr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(s.catalog, func(c models.CatalogItem) bool { return c.ID == id })
	if !ok {
		return models.CatalogItem{}, catalogNotFound(id)
	}
	item := patch.Apply(s.catalog[idx])
	if err := s.policy.Check(item.ToLineItem()); err != nil {
		return models.CatalogItem{}, err
	}
	s.catalog[idx] = item
	s.persist(ctx, models.KeyCatalog)
	return item, nil
}

func (s *Session) DeleteCatalogItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !lo.ContainsBy(s.catalog, func(c models.CatalogItem) bool { return c.ID == id }) {
		return catalogNotFound(id)
	}
	s.catalog = lo.Reject(s.catalog, func(c models.CatalogItem, _ int) bool { return c.ID == id })
	s.persist(ctx, models.KeyCatalog)
	return nil
}

// InsertCatalogItem appends the catalog entry to the document as a new row.
func (s *Session) InsertCatalogItem(ctx context.Context, id string) (Result, models.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := lo.Find(s.catalog, func(c models.CatalogItem) bool { return c.ID == id })
	if !ok {
		return s.snapshotLocked(), models.LineItem{}, catalogNotFound(id)
	}
	item := entry.ToLineItem()
	s.doc.Items = append(s.doc.Items, item)
	s.persist(ctx, models.KeyCurrentInvoice)
	return s.resultLocked(), item, nil
}

func catalogNotFound(id string) error {
	return ierr.NewErrorf("catalog item %s not found", id).
		WithHint("The catalog item does not exist").
		Mark(ierr.ErrNotFound)
}
