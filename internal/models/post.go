package models

import (
	"time"

	"mediaguard/backend/internal/identity"
)

// Post is an immutable record of submitted content and its moderation outcome.
// IDs are dense and zero-based in creation order.
type Post struct {
	ID uint64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	// Author is the participant who submitted the post.
	Author identity.Identity `gorm:"type:varchar(42);not null;index" json:"author"`
	// ContentHash addresses the off-ledger content. It is stored verbatim.
	ContentHash string `gorm:"type:text;not null" json:"content_hash"`
	// VulgarityScore is supplied by the submitter, in [0,100].
	VulgarityScore int `gorm:"not null" json:"vulgarity_score"`
	// IsBlocked is decided once at creation.
	IsBlocked bool      `gorm:"not null" json:"is_blocked"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
