package models

import (
	"time"

	"github.com/google/uuid"

	"mediaguard/backend/internal/identity"
)

// Event types published after a ledger mutation commits.
const (
	EventUserRegistered   = "user.registered"
	EventPostCreated      = "post.created"
	EventUserBlocked      = "user.blocked"
	EventUnblockRequested = "unblock.requested"
	EventUserUnblocked    = "user.unblocked"
	EventUnblockRejected  = "unblock.rejected"
)

// Event is a committed ledger change, fanned out over Redis and websockets.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Subject   identity.Identity `json:"subject"`
	Actor     identity.Identity `json:"actor,omitempty"`
	PostID    *uint64           `json:"post_id,omitempty"`
	Blocked   bool              `json:"blocked,omitempty"`
	Count     uint              `json:"violation_count"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType string, subject identity.Identity) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
	}
}
