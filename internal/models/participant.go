package models

import (
	"time"

	"mediaguard/backend/internal/identity"
)

// Participant is a registered identity and its moderation state.
type Participant struct {
	// Address is the caller identity the record is keyed by.
	Address identity.Identity `gorm:"primaryKey;type:varchar(42)" json:"address"`
	// IsRegistered is set on registration and never reset.
	IsRegistered bool `gorm:"not null;default:false" json:"is_registered"`
	// ViolationCount counts this participant's blocked posts since the last unblock.
	ViolationCount uint `gorm:"not null;default:0" json:"violation_count"`
	// IsBlocked bars the participant from posting until the Owner unblocks them.
	IsBlocked bool `gorm:"not null;default:false;index" json:"is_blocked"`
	// HasUnblockRequest is true while a review request is pending.
	HasUnblockRequest bool `gorm:"not null;default:false;index" json:"has_unblock_request"`

	RegisteredAt       time.Time  `gorm:"not null" json:"registered_at"`
	BlockedAt          *time.Time `json:"blocked_at,omitempty"`
	UnblockRequestedAt *time.Time `json:"unblock_requested_at,omitempty"`
}

// State names the moderation sub-state of the participant.
func (p *Participant) State() string {
	switch {
	case p.IsBlocked && p.HasUnblockRequest:
		return StateBlockedPendingReview
	case p.IsBlocked:
		return StateBlocked
	default:
		return StateActive
	}
}

const (
	StateActive               = "active"
	StateBlocked              = "blocked"
	StateBlockedPendingReview = "blocked_pending_review"
)
