// Package store is the durable source of truth for link mappings.
//
// Uniqueness of both short_code and original_url is enforced by unique
// indexes, which double as the concurrency primitive: concurrent creates
// race on the constraint, not on application locks.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("short code not found")
	ErrAliasTaken    = errors.New("alias already taken")
	ErrUsernameTaken = errors.New("username already taken")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the tables owned by this service.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Link{}, &User{}, &LinkEngagement{})
}

// CreateOutcome is the two-outcome result of CreateLink: exactly one of
// Created or Existing is set. Existing carries all live mappings for the
// requested URL, newest first, when the URL was already shortened.
type CreateOutcome struct {
	Created  *Link
	Existing []Link
}

// CreateLink inserts a new mapping.
//
// The alias is pre-checked so a taken short code surfaces as a clean
// ErrAliasTaken. URL uniqueness is left to the constraint: a unique
// violation on insert is recovered by re-reading the existing mappings
// for that URL. If that read comes back empty the violation was a lost
// race on the short code instead, and ErrAliasTaken is returned.
func (s *Store) CreateLink(ctx context.Context, originalURL, shortCode string, expiresAt *time.Time, ownerID *int64) (*CreateOutcome, error) {
	var taken int64
	if err := s.db.WithContext(ctx).Model(&Link{}).Where("short_code = ?", shortCode).Count(&taken).Error; err != nil {
		return nil, fmt.Errorf("check alias: %w", err)
	}
	if taken > 0 {
		return nil, ErrAliasTaken
	}

	link := Link{
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		ExpiresAt:   expiresAt,
		OwnerID:     ownerID,
	}
	err := s.db.WithContext(ctx).Create(&link).Error
	if err == nil {
		return &CreateOutcome{Created: &link}, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("create link: %w", err)
	}

	existing, ferr := s.FindByURL(ctx, originalURL)
	if ferr != nil {
		return nil, fmt.Errorf("load existing mappings: %w", ferr)
	}
	if len(existing) == 0 {
		return nil, ErrAliasTaken
	}
	return &CreateOutcome{Existing: existing}, nil
}

func (s *Store) FindByCode(ctx context.Context, shortCode string) (*Link, error) {
	var link Link
	err := s.db.WithContext(ctx).Where("short_code = ?", shortCode).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by code: %w", err)
	}
	return &link, nil
}

// FindByURL returns every mapping for the URL, newest first. Empty is not
// an error.
func (s *Store) FindByURL(ctx context.Context, originalURL string) ([]Link, error) {
	var links []Link
	err := s.db.WithContext(ctx).
		Where("original_url = ?", originalURL).
		Order("created_at DESC, id DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("find by url: %w", err)
	}
	return links, nil
}

// RecordVisit bumps visit_count and stamps last_accessed in one UPDATE, so
// the two never diverge. An absent code updates zero rows and is a no-op.
func (s *Store) RecordVisit(ctx context.Context, shortCode string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&Link{}).
		Where("short_code = ?", shortCode).
		Updates(map[string]any{
			"visit_count":   gorm.Expr("visit_count + 1"),
			"last_accessed": at,
		}).Error
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

func (s *Store) UpdateURL(ctx context.Context, shortCode, newURL string) error {
	res := s.db.WithContext(ctx).Model(&Link{}).
		Where("short_code = ?", shortCode).
		Update("original_url", newURL)
	if res.Error != nil {
		return fmt.Errorf("update url: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// OwnerOf returns the owning user id, or nil for an anonymous link.
func (s *Store) OwnerOf(ctx context.Context, shortCode string) (*int64, error) {
	var link Link
	err := s.db.WithContext(ctx).Select("owner_id").Where("short_code = ?", shortCode).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}
	return link.OwnerID, nil
}

func (s *Store) DeleteLink(ctx context.Context, shortCode string) error {
	res := s.db.WithContext(ctx).Where("short_code = ?", shortCode).Delete(&Link{})
	if res.Error != nil {
		return fmt.Errorf("delete link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
