package services

import (
	"context"

	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/samber/lo"
)

// Profiles returns a copy of the sender profiles.
func (s *Session) Profiles() []models.CompanyDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CompanyDetails, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// ActiveProfileID is the id of the profile used as sender.
func (s *Session) ActiveProfileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Sender.ID
}

// AddProfile creates a profile from the default sender and activates it.
func (s *Session) AddProfile(ctx context.Context) (Result, models.CompanyDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.NewProfile()
	s.profiles = append(s.profiles, p)
	s.doc.Sender = p
	s.persist(ctx, models.KeyProfiles, models.KeyCurrentInvoice)
	return s.resultLocked(), p
}

// SwitchProfile makes the profile with id the sender of the document.
func (s *Session) SwitchProfile(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := lo.Find(s.profiles, func(p models.CompanyDetails) bool { return p.ID == id })
	if !ok {
		return s.snapshotLocked(), profileNotFound(id)
	}
	s.doc.Sender = p
	s.persist(ctx, models.KeyCurrentInvoice)
	return s.resultLocked(), nil
}

// DeleteProfile removes a profile. The last profile cannot be deleted.
// Deleting the active profile activates the first remaining one.
func (s *Session) DeleteProfile(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !lo.ContainsBy(s.profiles, func(p models.CompanyDetails) bool { return p.ID == id }) {
		return s.snapshotLocked(), profileNotFound(id)
	}
	if len(s.profiles) <= 1 {
		return s.snapshotLocked(), ierr.NewError("cannot delete the last profile").
			WithHint("At least one company profile is required").
			Mark(ierr.ErrInvalidOperation)
	}

	s.profiles = lo.Reject(s.profiles, func(p models.CompanyDetails, _ int) bool { return p.ID == id })
	keys := []string{models.KeyProfiles}
	if s.doc.Sender.ID == id {
		s.doc.Sender = s.profiles[0]
		keys = append(keys, models.KeyCurrentInvoice)
	}
	s.persist(ctx, keys...)
	return s.resultLocked(), nil
}

func profileNotFound(id string) error {
	return ierr.NewErrorf("profile %s not found", id).
		WithHint("The company profile does not exist").
		Mark(ierr.ErrNotFound)
}
