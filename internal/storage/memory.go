package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/models"
)

// MemoryStore is an in-memory Storage for tests and throwaway runs.
// It mirrors the gorm store's ordering and not-found behavior.
type MemoryStore struct {
	mu sync.RWMutex

	participants map[identity.Identity]*models.Participant
	posts        []models.Post
	meta         *models.LedgerMeta
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		participants: make(map[identity.Identity]*models.Participant),
	}
}

// Migrate is a no-op for MemoryStore.
func (s *MemoryStore) Migrate(context.Context) error { return nil }

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }

// Transaction stages writes and applies them only if fn returns nil.
func (s *MemoryStore) Transaction(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, staged: make(map[identity.Identity]*models.Participant)}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, p := range tx.staged {
		s.participants[addr] = p
	}
	s.posts = append(s.posts, tx.posts...)
	return nil
}

func (s *MemoryStore) GetParticipant(_ context.Context, addr identity.Identity) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return copyParticipant(p), nil
}

func (s *MemoryStore) ListBlocked(context.Context) ([]models.Participant, error) {
	out := s.filterParticipants(func(p *models.Participant) bool { return p.IsBlocked })
	sort.SliceStable(out, func(i, j int) bool {
		return timeOf(out[j].BlockedAt).Before(timeOf(out[i].BlockedAt))
	})
	return out, nil
}

func (s *MemoryStore) ListPendingUnblock(context.Context) ([]models.Participant, error) {
	out := s.filterParticipants(func(p *models.Participant) bool { return p.HasUnblockRequest })
	sort.SliceStable(out, func(i, j int) bool {
		return timeOf(out[i].UnblockRequestedAt).Before(timeOf(out[j].UnblockRequestedAt))
	})
	return out, nil
}

func (s *MemoryStore) GetPost(_ context.Context, id uint64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint64(len(s.posts)) {
		return nil, ErrNotFound
	}
	post := s.posts[id]
	return &post, nil
}

func (s *MemoryStore) PostCount(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.posts)), nil
}

func (s *MemoryStore) ListPostsByAuthor(_ context.Context, author identity.Identity) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Post
	for _, post := range s.posts {
		if post.Author == author {
			out = append(out, post)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecentPosts(_ context.Context, limit int) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Post
	for i := len(s.posts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.posts[i])
	}
	return out, nil
}

func (s *MemoryStore) Stats(context.Context) (models.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := models.LedgerStats{
		TotalParticipants: int64(len(s.participants)),
		TotalPosts:        uint64(len(s.posts)),
	}
	for _, post := range s.posts {
		if post.IsBlocked {
			st.BlockedPosts++
		}
	}
	for _, p := range s.participants {
		if p.IsBlocked {
			st.BlockedUsers++
		}
		if p.HasUnblockRequest {
			st.PendingUnblocks++
		}
		st.TotalViolations += int64(p.ViolationCount)
	}
	return st, nil
}

func (s *MemoryStore) LoadMeta(context.Context) (*models.LedgerMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return nil, ErrNotFound
	}
	meta := *s.meta
	return &meta, nil
}

func (s *MemoryStore) SaveMeta(_ context.Context, meta *models.LedgerMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta != nil {
		return ErrDuplicate
	}
	meta.ID = models.LedgerMetaID
	stored := *meta
	s.meta = &stored
	return nil
}

func (s *MemoryStore) filterParticipants(keep func(*models.Participant) bool) []models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Participant
	for _, p := range s.participants {
		if keep(p) {
			out = append(out, *copyParticipant(p))
		}
	}
	// map order is random; make ties deterministic
	sort.SliceStable(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

type memoryTx struct {
	store  *MemoryStore
	staged map[identity.Identity]*models.Participant
	posts  []models.Post
}

func (t *memoryTx) GetParticipant(addr identity.Identity) (*models.Participant, error) {
	if p, ok := t.staged[addr]; ok {
		return copyParticipant(p), nil
	}
	p, ok := t.store.participants[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return copyParticipant(p), nil
}

func (t *memoryTx) CreateParticipant(p *models.Participant) error {
	if _, err := t.GetParticipant(p.Address); err == nil {
		return ErrDuplicate
	}
	t.staged[p.Address] = copyParticipant(p)
	return nil
}

func (t *memoryTx) SaveParticipant(p *models.Participant) error {
	t.staged[p.Address] = copyParticipant(p)
	return nil
}

func (t *memoryTx) PostCount() (uint64, error) {
	return uint64(len(t.store.posts) + len(t.posts)), nil
}

func (t *memoryTx) AppendPost(p *models.Post) error {
	if p.ID != uint64(len(t.store.posts)+len(t.posts)) {
		return errPostIDGap
	}
	t.posts = append(t.posts, *p)
	return nil
}

var errPostIDGap = errors.New("storage: post id is not the next sequence number")

func copyParticipant(p *models.Participant) *models.Participant {
	c := *p
	if p.BlockedAt != nil {
		t := *p.BlockedAt
		c.BlockedAt = &t
	}
	if p.UnblockRequestedAt != nil {
		t := *p.UnblockRequestedAt
		c.UnblockRequestedAt = &t
	}
	return &c
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
