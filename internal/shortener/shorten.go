package shortener

import (
	"context"
	"time"
)

// ShortenResult carries either the freshly created link or, when the URL was
// already shortened, every existing mapping for it (newest first).
type ShortenResult struct {
	Created  *Link
	Existing []Link
}

// Shorten maps originalURL to a short code. A non-empty customAlias is used
// verbatim and fails with store.ErrAliasTaken when occupied; otherwise a
// random code is drawn. Shortening an already-shortened URL is not an error:
// the existing mappings come back instead of a new row.
func (s *Service) Shorten(ctx context.Context, originalURL, customAlias string, expiresAt *time.Time, ownerID *int64) (*ShortenResult, error) {
	code := s.codes.Allocate(customAlias)

	out, err := s.store.CreateLink(ctx, originalURL, code, expiresAt, ownerID)
	if err != nil {
		return nil, err
	}
	return &ShortenResult{Created: out.Created, Existing: out.Existing}, nil
}
