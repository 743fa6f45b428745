package config

import "time"

const (
	// Moderation
	VulgarityThreshold  = 50 // scores above this are violations
	SuspensionThreshold = 3  // violations that suspend the author
	MinVulgarityScore   = 0
	MaxVulgarityScore   = 100

	// Auth
	DefaultTokenIssuer = "mediaguard-service"
	DefaultTokenTTL    = 72 * time.Hour

	// Events
	EventsChannel = "mediaguard:events"
)
