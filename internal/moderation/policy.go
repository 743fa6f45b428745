// Package moderation holds the vulgarity policy that decides whether a post is
// a violation and whether the author's accumulated violations suspend them.
// It has no state; the ledger applies its decisions.
package moderation

import "mediaguard/backend/internal/config"

// Policy holds the two thresholds of the moderation rule.
type Policy struct {
	// VulgarityThreshold is the highest score that still passes.
	VulgarityThreshold int
	// SuspensionThreshold is the violation count at which the author is blocked.
	SuspensionThreshold uint
}

// DefaultPolicy returns the policy with the configured defaults (50 / 3).
func DefaultPolicy() Policy {
	return Policy{
		VulgarityThreshold:  config.VulgarityThreshold,
		SuspensionThreshold: config.SuspensionThreshold,
	}
}

// Decision is the outcome of moderating one post.
type Decision struct {
	PostBlocked       bool
	NewViolationCount uint
	Suspend           bool
}

// IsViolation reports whether a score is above the vulgarity threshold.
func (p Policy) IsViolation(score int) bool {
	return score > p.VulgarityThreshold
}

// ShouldSuspend reports whether a violation count reaches the suspension threshold.
func (p Policy) ShouldSuspend(count uint) bool {
	return count >= p.SuspensionThreshold
}

// Decide moderates a post with the given score from an author who currently
// has count violations.
func (p Policy) Decide(score int, count uint) Decision {
	if !p.IsViolation(score) {
		return Decision{NewViolationCount: count}
	}
	next := count + 1
	return Decision{
		PostBlocked:       true,
		NewViolationCount: next,
		Suspend:           p.ShouldSuspend(next),
	}
}

// ValidScore reports whether score lies in [0,100].
func ValidScore(score int) bool {
	return score >= config.MinVulgarityScore && score <= config.MaxVulgarityScore
}
