// Package shortener implements the redirect/lookup core: allocation of
// short codes, read-through resolution against a cache-fronted store, and
// owner-gated mutation with cache invalidation.
package shortener

import (
	"context"
	"errors"
	"time"

	"github.com/mvolkov/linkcut/internal/shortcode"
	"github.com/mvolkov/linkcut/internal/store"
)

var (
	// ErrExpired marks a link past its expires_at: still stored, never served.
	ErrExpired = errors.New("link expired")
	// ErrForbidden marks a mutation by anyone but the link's owner.
	ErrForbidden = errors.New("requester does not own this link")
)

// Link is the stored mapping record.
type Link = store.Link

// LinkStore is the durable source of truth. *store.Store satisfies it.
type LinkStore interface {
	CreateLink(ctx context.Context, originalURL, shortCode string, expiresAt *time.Time, ownerID *int64) (*store.CreateOutcome, error)
	FindByCode(ctx context.Context, shortCode string) (*store.Link, error)
	FindByURL(ctx context.Context, originalURL string) ([]store.Link, error)
	RecordVisit(ctx context.Context, shortCode string, at time.Time) error
	UpdateURL(ctx context.Context, shortCode, newURL string) error
	OwnerOf(ctx context.Context, shortCode string) (*int64, error)
	DeleteLink(ctx context.Context, shortCode string) error
}

// Cache accelerates resolution. Implementations absorb their own failures:
// a broken cache looks like an empty one.
type Cache interface {
	Get(ctx context.Context, shortCode string) (string, bool)
	Set(ctx context.Context, shortCode, originalURL string, ttl time.Duration)
	Delete(ctx context.Context, shortCode string)
}

type Service struct {
	store    LinkStore
	cache    Cache
	codes    *shortcode.Allocator
	cacheTTL time.Duration
}

func New(linkStore LinkStore, c Cache, codes *shortcode.Allocator, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Service{
		store:    linkStore,
		cache:    c,
		codes:    codes,
		cacheTTL: cacheTTL,
	}
}
