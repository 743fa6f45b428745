package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/models"
	"mediaguard/backend/internal/moderation"
	"mediaguard/backend/internal/storage"
)

// CreatePost appends a post by caller and applies the moderation decision to
// the author in the same transaction. It returns the new post id.
//
// Preconditions are checked in order: registered, not blocked, score in
// [0,100], non-empty content hash.
func (s *Service) CreatePost(ctx context.Context, caller identity.Identity, contentHash string, vulgarityScore int) (id uint64, err error) {
	start := time.Now()
	defer func() { observe("create_post", start, err) }()

	var post *models.Post
	var decision moderation.Decision

	err = s.mutate(ctx, func(tx storage.Tx) ([]models.Event, error) {
		author, err := loadParticipant(tx, caller, ErrNotRegistered)
		if err != nil {
			return nil, err
		}
		if author.IsBlocked {
			return nil, ErrUserBlocked
		}
		if !moderation.ValidScore(vulgarityScore) {
			return nil, ErrInvalidScore
		}
		if strings.TrimSpace(contentHash) == "" {
			return nil, ErrInvalidContentHash
		}

		next, err := tx.PostCount()
		if err != nil {
			return nil, fmt.Errorf("ledger: count posts: %w", err)
		}

		now := s.now()
		decision, err = s.moderate(author, vulgarityScore, now)
		if err != nil {
			return nil, err
		}

		post = &models.Post{
			ID:             next,
			Author:         caller,
			ContentHash:    contentHash,
			VulgarityScore: vulgarityScore,
			IsBlocked:      decision.PostBlocked,
			CreatedAt:      now,
		}
		if err := tx.AppendPost(post); err != nil {
			return nil, fmt.Errorf("ledger: append post: %w", err)
		}

		events := []models.Event{s.postEvent(post, author)}
		if decision.PostBlocked {
			if err := tx.SaveParticipant(author); err != nil {
				return nil, fmt.Errorf("ledger: save participant: %w", err)
			}
		}
		if decision.Suspend {
			events = append(events, s.event(models.EventUserBlocked, author, ""))
		}
		return events, nil
	})
	if err != nil {
		return 0, err
	}

	postsCreated.WithLabelValues(strconv.FormatBool(post.IsBlocked)).Inc()
	if decision.Suspend {
		suspensionCount.Inc()
		s.log.Info("participant suspended", "address", caller, "violations", decision.NewViolationCount)
	}
	s.log.Debug("post created", "id", post.ID, "author", caller, "score", vulgarityScore, "blocked", post.IsBlocked)
	return post.ID, nil
}

// GetPost returns a snapshot of a post, or ErrNotFound if id is past the end
// of the ledger.
func (s *Service) GetPost(ctx context.Context, id uint64) (*models.Post, error) {
	post, err := s.Storage.GetPost(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get post %d: %w", id, err)
	}
	return post, nil
}

// PostCount returns the number of posts; valid ids are [0, PostCount).
func (s *Service) PostCount(ctx context.Context) (uint64, error) {
	return s.Storage.PostCount(ctx)
}

// PostsByAuthor returns an author's posts in id order, for owner review.
func (s *Service) PostsByAuthor(ctx context.Context, author identity.Identity) ([]models.Post, error) {
	return s.Storage.ListPostsByAuthor(ctx, author)
}

func (s *Service) postEvent(post *models.Post, author *models.Participant) models.Event {
	ev := s.event(models.EventPostCreated, author, author.Address)
	id := post.ID
	ev.PostID = &id
	ev.Blocked = post.IsBlocked
	return ev
}
