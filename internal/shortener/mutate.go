package shortener

import (
	"context"
)

// Update changes a link's target URL. Only the owning user may update;
// anonymous links have no owner and are therefore immutable. The cache
// entry is deleted, not refreshed — the next resolution repopulates it,
// which keeps the invalidation path trivially correct.
func (s *Service) Update(ctx context.Context, shortCode, newURL string, requesterID int64) error {
	if err := s.authorize(ctx, shortCode, requesterID); err != nil {
		return err
	}
	if err := s.store.UpdateURL(ctx, shortCode, newURL); err != nil {
		return err
	}
	s.cache.Delete(ctx, shortCode)
	return nil
}

// Delete removes the link row and its cache entry. Same ownership rule as
// Update.
func (s *Service) Delete(ctx context.Context, shortCode string, requesterID int64) error {
	if err := s.authorize(ctx, shortCode, requesterID); err != nil {
		return err
	}
	if err := s.store.DeleteLink(ctx, shortCode); err != nil {
		return err
	}
	s.cache.Delete(ctx, shortCode)
	return nil
}

func (s *Service) authorize(ctx context.Context, shortCode string, requesterID int64) error {
	owner, err := s.store.OwnerOf(ctx, shortCode)
	if err != nil {
		return err
	}
	if owner == nil || *owner != requesterID {
		return ErrForbidden
	}
	return nil
}
