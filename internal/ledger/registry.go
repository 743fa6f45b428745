package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/models"
	"mediaguard/backend/internal/storage"
)

// Register creates the caller's participant record.
func (s *Service) Register(ctx context.Context, caller identity.Identity) (p *models.Participant, err error) {
	start := time.Now()
	defer func() { observe("register", start, err) }()

	err = s.mutate(ctx, func(tx storage.Tx) ([]models.Event, error) {
		_, err := tx.GetParticipant(caller)
		if err == nil {
			return nil, ErrAlreadyRegistered
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("ledger: load participant %s: %w", caller, err)
		}

		p = &models.Participant{
			Address:      caller,
			IsRegistered: true,
			RegisteredAt: s.now(),
		}
		if err := tx.CreateParticipant(p); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return nil, ErrAlreadyRegistered
			}
			return nil, fmt.Errorf("ledger: create participant: %w", err)
		}
		return []models.Event{s.event(models.EventUserRegistered, p, caller)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("participant registered", "address", caller)
	return p, nil
}

// GetUser returns a snapshot of a participant, or ErrNotFound if the identity
// never registered.
func (s *Service) GetUser(ctx context.Context, addr identity.Identity) (*models.Participant, error) {
	p, err := s.Storage.GetParticipant(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get user %s: %w", addr, err)
	}
	return p, nil
}

// ListBlocked returns suspended participants, most recently blocked first.
func (s *Service) ListBlocked(ctx context.Context) ([]models.Participant, error) {
	return s.Storage.ListBlocked(ctx)
}

// ListPendingUnblock returns participants awaiting review, oldest first.
func (s *Service) ListPendingUnblock(ctx context.Context) ([]models.Participant, error) {
	return s.Storage.ListPendingUnblock(ctx)
}

// Stats returns the dashboard counters.
func (s *Service) Stats(ctx context.Context) (models.LedgerStats, error) {
	return s.Storage.Stats(ctx)
}

// DefaultDashboardLimit is how many entries each dashboard list shows.
const DefaultDashboardLimit = 5

// Dashboard returns the counters with the newest posts, the most recently
// blocked participants and the newest unblock requests, limit of each.
func (s *Service) Dashboard(ctx context.Context, limit int) (models.Dashboard, error) {
	if limit <= 0 {
		limit = DefaultDashboardLimit
	}
	var d models.Dashboard
	var err error

	if d.Stats, err = s.Storage.Stats(ctx); err != nil {
		return d, fmt.Errorf("ledger: stats: %w", err)
	}
	if d.RecentPosts, err = s.Storage.RecentPosts(ctx, limit); err != nil {
		return d, fmt.Errorf("ledger: recent posts: %w", err)
	}
	blocked, err := s.Storage.ListBlocked(ctx)
	if err != nil {
		return d, fmt.Errorf("ledger: list blocked: %w", err)
	}
	d.RecentlyBlocked = head(blocked, limit)

	pending, err := s.Storage.ListPendingUnblock(ctx)
	if err != nil {
		return d, fmt.Errorf("ledger: list pending: %w", err)
	}
	slices.Reverse(pending)
	d.RecentUnblockRequests = head(pending, limit)
	return d, nil
}

func head[T any](xs []T, n int) []T {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

// The mutators below are the only way moderation and the unblock workflow
// change a participant.

func incrementViolation(p *models.Participant) { p.ViolationCount++ }

func setBlocked(p *models.Participant, blocked bool, at time.Time) {
	p.IsBlocked = blocked
	if blocked {
		p.BlockedAt = &at
	} else {
		p.BlockedAt = nil
	}
}

func setUnblockRequest(p *models.Participant, pending bool, at time.Time) {
	p.HasUnblockRequest = pending
	if pending {
		p.UnblockRequestedAt = &at
	} else {
		p.UnblockRequestedAt = nil
	}
}

func clearViolations(p *models.Participant) { p.ViolationCount = 0 }

func (s *Service) event(eventType string, p *models.Participant, actor identity.Identity) models.Event {
	ev := models.NewEvent(eventType, p.Address)
	ev.Actor = actor
	ev.Blocked = p.IsBlocked
	ev.Count = p.ViolationCount
	return ev
}
