// Package ledger is the moderation core: the participant registry, the
// append-only post ledger, the side effects of moderation decisions and the
// owner-reviewed unblock workflow.
//
// Every mutating operation runs under one mutex and inside one storage
// transaction, so a post and the violation or suspension it causes commit
// together. The storage transaction also excludes writers in other
// processes sharing the database. Reads go straight to storage and see
// committed state only.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/models"
	"mediaguard/backend/internal/moderation"
	"mediaguard/backend/internal/storage"
)

// Publisher receives events after the mutation that produced them commits.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) error { return nil }

// Options tunes a Service. The zero value uses the default policy, no
// publisher, slog.Default and the wall clock.
type Options struct {
	Policy    moderation.Policy
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service handles the ledger operations.
type Service struct {
	Storage storage.Storage

	authority *identity.Authority
	token     models.TokenLink
	policy    moderation.Policy
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time

	// mu serializes every mutating operation.
	mu sync.Mutex
}

// New attaches the ledger to an already deployed token. On first start it
// records the owner and token; later starts must present the same pair.
func New(ctx context.Context, s storage.Storage, authority *identity.Authority, token models.TokenLink, opts Options) (*Service, error) {
	if _, err := identity.Parse(token.Address.String()); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTokenLink, token.Address)
	}
	if authority == nil || authority.Owner() == "" {
		return nil, errors.New("ledger: owner identity is required")
	}

	if opts.Policy.SuspensionThreshold == 0 {
		opts.Policy = moderation.DefaultPolicy()
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	svc := &Service{
		Storage:   s,
		authority: authority,
		token:     token,
		policy:    opts.Policy,
		publisher: opts.Publisher,
		log:       opts.Logger.With("component", "ledger"),
		now:       opts.Now,
	}
	if err := svc.attach(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) attach(ctx context.Context) error {
	meta, err := s.Storage.LoadMeta(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		meta = &models.LedgerMeta{
			Owner:        s.authority.Owner(),
			TokenAddress: s.token.Address.String(),
			CreatedAt:    s.now(),
		}
		err = s.Storage.SaveMeta(ctx, meta)
		if err == nil {
			s.log.Info("ledger initialized", "owner", meta.Owner, "token", meta.TokenAddress)
			return nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("ledger: save meta: %w", err)
		}
		// another instance initialized it first
		meta, err = s.Storage.LoadMeta(ctx)
	}
	if err != nil {
		return fmt.Errorf("ledger: load meta: %w", err)
	}
	if meta.Owner != s.authority.Owner() || meta.TokenAddress != s.token.Address.String() {
		return fmt.Errorf("%w: stored owner=%s token=%s", ErrMetaMismatch, meta.Owner, meta.TokenAddress)
	}
	s.log.Info("ledger attached", "owner", meta.Owner, "token", meta.TokenAddress)
	return nil
}

// TokenLink returns the token component handle captured at initialization.
func (s *Service) TokenLink() models.TokenLink { return s.token }

// Owner returns the privileged identity.
func (s *Service) Owner() identity.Identity { return s.authority.Owner() }

// Policy returns the moderation thresholds in force.
func (s *Service) Policy() moderation.Policy { return s.policy }

// mutate runs fn under the write lock and inside one transaction, then
// publishes the events fn produced before releasing the lock, so
// subscribers see events in commit order. Publishing never undoes the commit.
func (s *Service) mutate(ctx context.Context, fn func(tx storage.Tx) ([]models.Event, error)) error {
	var events []models.Event

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.Storage.Transaction(ctx, func(tx storage.Tx) error {
		var err error
		events, err = fn(tx)
		return err
	})
	if err != nil {
		return err
	}

	for _, ev := range events {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			publishErrorCount.Inc()
			s.log.Warn("failed to publish event", "type", ev.Type, "subject", ev.Subject, "err", err)
		}
	}
	return nil
}

// loadParticipant maps a missing record to notFound.
func loadParticipant(tx storage.Tx, addr identity.Identity, notFound error) (*models.Participant, error) {
	p, err := tx.GetParticipant(addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load participant %s: %w", addr, err)
	}
	return p, nil
}
