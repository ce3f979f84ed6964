package shortener

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mvolkov/linkcut/internal/store"
)

// Resolve returns the live target URL for a short code.
//
// Cache hits are trusted without re-checking expires_at: the cache TTL is
// short enough that a link expiring mid-window redirects for at most that
// long, a deliberate bounded-staleness trade-off. Tune the TTL down rather
// than adding a store round-trip to the hot path.
//
// On a miss the store decides: unknown code -> store.ErrNotFound, past
// expiry -> ErrExpired (no visit recorded, no cache fill). A live link has
// its visit recorded before the cache is written, so an interrupted request
// leaves at worst a cold cache, never unrecorded stats behind a warm one.
func (s *Service) Resolve(ctx context.Context, shortCode string, now time.Time) (string, error) {
	if url, ok := s.cache.Get(ctx, shortCode); ok {
		s.recordVisit(ctx, shortCode, now)
		return url, nil
	}

	link, err := s.store.FindByCode(ctx, shortCode)
	if err != nil {
		return "", err
	}
	if link.Expired(now) {
		return "", ErrExpired
	}

	s.recordVisit(ctx, shortCode, now)
	s.cache.Set(ctx, shortCode, link.OriginalURL, s.cacheTTL)
	return link.OriginalURL, nil
}

// recordVisit must not fail the redirect: stats are best-effort, the
// redirect decision is not.
func (s *Service) recordVisit(ctx context.Context, shortCode string, now time.Time) {
	if err := s.store.RecordVisit(ctx, shortCode, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("visit not recorded", "short_code", shortCode, "err", err)
	}
}
