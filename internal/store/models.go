package store

import (
	"time"
)

type Link struct {
	ID           int64      `gorm:"primaryKey;type:bigint" json:"-"`
	ShortCode    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"short_code"`
	OriginalURL  string     `gorm:"type:text;uniqueIndex;not null" json:"original_url"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	VisitCount   int64      `gorm:"not null;default:0" json:"visit_count"`
	LastAccessed *time.Time `json:"last_accessed"`
	OwnerID      *int64     `gorm:"index" json:"-"`
}

// Expired reports whether the link is past its expiry at the given instant.
// Links without an expiry never expire. Comparison is in UTC.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.UTC().Before(now.UTC())
}

type User struct {
	ID           int64  `gorm:"primaryKey;type:bigint"`
	Username     string `gorm:"type:varchar(64);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:text;not null"`
}

// LinkEngagement is the per-code aggregate maintained by the clicks worker.
// It is enrichment on top of Link.VisitCount, not a replacement for it.
type LinkEngagement struct {
	ID         int64     `gorm:"primaryKey;type:bigint"`
	ShortCode  string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	ClickCount int64     `gorm:"not null;default:0"`
	LastSeen   time.Time `gorm:"not null"`
}
