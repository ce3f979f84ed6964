package shortener

import (
	"context"
)

// Stats returns the full link record, expired links included: expiry only
// blocks resolution, not inspection.
func (s *Service) Stats(ctx context.Context, shortCode string) (*Link, error) {
	return s.store.FindByCode(ctx, shortCode)
}

// Search lists every mapping for a URL, newest first. Empty is a valid
// answer, not an error.
func (s *Service) Search(ctx context.Context, originalURL string) ([]Link, error) {
	return s.store.FindByURL(ctx, originalURL)
}
