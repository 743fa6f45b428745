package models

import (
	"time"

	"mediaguard/backend/internal/identity"
)

// LedgerMetaID is the primary key of the single LedgerMeta row.
const LedgerMetaID = 1

// LedgerMeta records what the ledger was initialized with.
type LedgerMeta struct {
	ID           uint              `gorm:"primaryKey;autoIncrement:false"`
	Owner        identity.Identity `gorm:"type:varchar(42);not null"`
	TokenAddress string            `gorm:"type:varchar(42);not null"`
	CreatedAt    time.Time
}

// TokenLink is the address of the externally deployed token component.
// The ledger stores it and hands it back; nothing else is assumed about it.
type TokenLink struct {
	Address identity.Identity `json:"address"`
}

// LedgerStats summarizes the ledger for the admin dashboard.
type LedgerStats struct {
	TotalParticipants int64  `json:"total_participants"`
	TotalPosts        uint64 `json:"total_posts"`
	BlockedPosts      int64  `json:"blocked_posts"`
	BlockedUsers      int64  `json:"blocked_users"`
	PendingUnblocks   int64  `json:"pending_unblock_requests"`
	TotalViolations   int64  `json:"total_violations"`
}

// Dashboard is the owner's overview: counters plus the newest activity.
type Dashboard struct {
	Stats                 LedgerStats   `json:"stats"`
	RecentPosts           []Post        `json:"recent_posts"`
	RecentlyBlocked       []Participant `json:"recently_blocked"`
	RecentUnblockRequests []Participant `json:"recent_unblock_requests"`
}
