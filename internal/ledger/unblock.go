package ledger

import (
	"context"
	"time"

	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/models"
	"mediaguard/backend/internal/storage"
)

// RequestUnblock asks the owner to review the caller's suspension. Asking
// again while a request is pending is a no-op and keeps the first timestamp.
func (s *Service) RequestUnblock(ctx context.Context, caller identity.Identity) (err error) {
	start := time.Now()
	defer func() { observe("request_unblock", start, err) }()

	requested := false
	err = s.mutate(ctx, func(tx storage.Tx) ([]models.Event, error) {
		p, err := loadParticipant(tx, caller, ErrNotRegistered)
		if err != nil {
			return nil, err
		}
		if !p.IsBlocked {
			return nil, ErrNotBlocked
		}
		if p.HasUnblockRequest {
			return nil, nil
		}

		setUnblockRequest(p, true, s.now())
		if err := tx.SaveParticipant(p); err != nil {
			return nil, err
		}
		requested = true
		return []models.Event{s.event(models.EventUnblockRequested, p, caller)}, nil
	})
	if err != nil {
		return err
	}
	if requested {
		s.log.Info("unblock requested", "address", caller)
	}
	return nil
}

// AnalyzeAndUnblockUser approves target's pending request: the suspension,
// the violation count and the request are cleared in one write. Only the
// owner may call it.
func (s *Service) AnalyzeAndUnblockUser(ctx context.Context, caller, target identity.Identity) (err error) {
	start := time.Now()
	defer func() { observe("analyze_and_unblock", start, err) }()

	if !s.authority.IsOwner(caller) {
		return ErrNotOwner
	}

	err = s.mutate(ctx, func(tx storage.Tx) ([]models.Event, error) {
		p, err := loadParticipant(tx, target, ErrNotFound)
		if err != nil {
			return nil, err
		}
		if !p.HasUnblockRequest {
			return nil, ErrNoPendingRequest
		}

		now := s.now()
		setBlocked(p, false, now)
		clearViolations(p)
		setUnblockRequest(p, false, now)
		if err := tx.SaveParticipant(p); err != nil {
			return nil, err
		}
		return []models.Event{s.event(models.EventUserUnblocked, p, caller)}, nil
	})
	if err != nil {
		return err
	}
	reviewCount.WithLabelValues("approved").Inc()
	s.log.Info("participant unblocked", "address", target, "by", caller)
	return nil
}

// RejectUnblockRequest declines target's pending request. The suspension and
// the violation count stay; the participant may ask again.
func (s *Service) RejectUnblockRequest(ctx context.Context, caller, target identity.Identity) (err error) {
	start := time.Now()
	defer func() { observe("reject_unblock", start, err) }()

	if !s.authority.IsOwner(caller) {
		return ErrNotOwner
	}

	err = s.mutate(ctx, func(tx storage.Tx) ([]models.Event, error) {
		p, err := loadParticipant(tx, target, ErrNotFound)
		if err != nil {
			return nil, err
		}
		if !p.HasUnblockRequest {
			return nil, ErrNoPendingRequest
		}

		setUnblockRequest(p, false, s.now())
		if err := tx.SaveParticipant(p); err != nil {
			return nil, err
		}
		return []models.Event{s.event(models.EventUnblockRejected, p, caller)}, nil
	})
	if err != nil {
		return err
	}
	reviewCount.WithLabelValues("rejected").Inc()
	s.log.Info("unblock request rejected", "address", target, "by", caller)
	return nil
}
