package ledger

import (
	"time"

	"mediaguard/backend/internal/models"
	"mediaguard/backend/internal/moderation"
)

// moderate decides a post and applies the decision to author in memory.
// The caller persists author together with the post.
func (s *Service) moderate(author *models.Participant, score int, now time.Time) (moderation.Decision, error) {
	if author.IsBlocked {
		return moderation.Decision{}, errUnreachableBlockedAuthor
	}

	decision := s.policy.Decide(score, author.ViolationCount)
	if !decision.PostBlocked {
		return decision, nil
	}

	incrementViolation(author)
	if s.policy.ShouldSuspend(author.ViolationCount) {
		setBlocked(author, true, now)
	}
	return decision, nil
}
