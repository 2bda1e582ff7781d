package services

import (
	"context"

	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/samber/lo"
)

// Templates returns a copy of the saved templates.
func (s *Session) Templates() []models.InvoiceTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.InvoiceTemplate, len(s.templates))
	copy(out, s.templates)
	return out
}

// SaveTemplate snapshots the configuration of the current document.
func (s *Session) SaveTemplate(ctx context.Context, name string) (models.InvoiceTemplate, string, error) {
	name = trimmed(&name)
	if name == "" {
		return models.InvoiceTemplate{}, "", ierr.NewError("template name is empty").
			WithHint("Give the template a name").
			Mark(ierr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl := models.NewTemplate(name, s.doc)
	s.templates = append(s.templates, tpl)
	s.persist(ctx, models.KeyTemplates)
	var warning string
	if w := s.takeWarningLocked(); w != nil {
		warning = warningText(w)
	}
	return tpl, warning, nil
}

// ApplyTemplate replaces the configuration and items of the document with
// the template's. The receiver is kept and the active profile stays sender.
func (s *Session) ApplyTemplate(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := lo.Find(s.templates, func(t models.InvoiceTemplate) bool { return t.ID == id })
	if !ok {
		return s.snapshotLocked(), templateNotFound(id)
	}
	doc, err := models.ApplyTemplate(tpl, s.doc, s.doc.Sender, s.now(), s.numbers)
	if err != nil {
		return s.snapshotLocked(), err
	}
	if err := s.policy.CheckItems(doc.Items); err != nil {
		return s.snapshotLocked(), err
	}
	s.doc = doc
	s.persist(ctx, models.KeyCurrentInvoice)
	return s.resultLocked(), nil
}

func (s *Session) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !lo.ContainsBy(s.templates, func(t models.InvoiceTemplate) bool { return t.ID == id }) {
		return templateNotFound(id)
	}
	s.templates = lo.Reject(s.templates, func(t models.InvoiceTemplate, _ int) bool { return t.ID == id })
	s.persist(ctx, models.KeyTemplates)
	return nil
}

func templateNotFound(id string) error {
	return ierr.NewErrorf("template %s not found", id).
		WithHint("The template does not exist").
		Mark(ierr.ErrNotFound)
}
