// Package memory implements the domain store interfaces with in-process
// maps. It backs standalone mode and the test suites; the durable path is
// the postgres package.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// PoolStore is an in-memory domain.PoolStore.
type PoolStore struct {
	mu    sync.RWMutex
	pools map[uint64]*domain.Pool
}

// NewPoolStore creates an empty PoolStore.
func NewPoolStore() *PoolStore {
	return &PoolStore{pools: make(map[uint64]*domain.Pool)}
}

func (s *PoolStore) Create(_ context.Context, pool *domain.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[pool.ID]; ok {
		return fmt.Errorf("memory: pool %d exists", pool.ID)
	}
	s.pools[pool.ID] = pool.Clone()
	return nil
}

func (s *PoolStore) Get(_ context.Context, id uint64) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[id]
	if !ok {
		return nil, fmt.Errorf("memory: pool %d: %w", id, domain.ErrPoolNotFound)
	}
	return p.Clone(), nil
}

func (s *PoolStore) Update(_ context.Context, pool *domain.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[pool.ID]; !ok {
		return fmt.Errorf("memory: pool %d: %w", pool.ID, domain.ErrPoolNotFound)
	}
	s.pools[pool.ID] = pool.Clone()
	return nil
}

func (s *PoolStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[id]; !ok {
		return fmt.Errorf("memory: pool %d: %w", id, domain.ErrPoolNotFound)
	}
	delete(s.pools, id)
	return nil
}

func (s *PoolStore) List(_ context.Context, opts domain.ListOpts) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.pools))
	for id := range s.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	out := make([]*domain.Pool, 0)
	for i, id := range ids {
		if i < opts.Offset {
			continue
		}
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		out = append(out, s.pools[id].Clone())
	}
	return out, nil
}

func (s *PoolStore) ListResolvedBefore(_ context.Context, cutoff time.Time, limit int) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Pool
	for _, p := range s.pools {
		if p.Phase.Terminal() && p.UpdatedAt.Before(cutoff) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *PoolStore) MaxID(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint64
	for id := range s.pools {
		if id > max {
			max = id
		}
	}
	return max, nil
}

// ParticipantStore is an in-memory domain.ParticipantStore.
type ParticipantStore struct {
	mu      sync.RWMutex
	entries map[uint64]map[domain.Address]*domain.Participant
}

// NewParticipantStore creates an empty ParticipantStore.
func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{entries: make(map[uint64]map[domain.Address]*domain.Participant)}
}

func (s *ParticipantStore) Create(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byAccount, ok := s.entries[p.PoolID]
	if !ok {
		byAccount = make(map[domain.Address]*domain.Participant)
		s.entries[p.PoolID] = byAccount
	}
	if _, ok := byAccount[p.Account]; ok {
		return fmt.Errorf("memory: pool %d account %s: %w", p.PoolID, p.Account.Hex(), domain.ErrPlayerAlreadyInPool)
	}
	cp := *p
	byAccount[p.Account] = &cp
	return nil
}

func (s *ParticipantStore) Get(_ context.Context, poolID uint64, account domain.Address) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[poolID][account]
	if !ok {
		return nil, fmt.Errorf("memory: pool %d account %s: %w", poolID, account.Hex(), domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *ParticipantStore) Delete(_ context.Context, poolID uint64, account domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[poolID][account]; !ok {
		return fmt.Errorf("memory: pool %d account %s: %w", poolID, account.Hex(), domain.ErrNotFound)
	}
	delete(s.entries[poolID], account)
	return nil
}

func (s *ParticipantStore) ListByPool(_ context.Context, poolID uint64, opts domain.ListOpts) ([]*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*domain.Participant, 0, len(s.entries[poolID]))
	for _, p := range s.entries[poolID] {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].JoinedAt.Before(all[j].JoinedAt) })

	if opts.Offset > 0 {
		if opts.Offset >= len(all) {
			return nil, nil
		}
		all = all[opts.Offset:]
	}
	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (s *ParticipantStore) CountByPool(_ context.Context, poolID uint64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[poolID]), nil
}

func (s *ParticipantStore) SetWithdrawn(_ context.Context, poolID uint64, account domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[poolID][account]
	if !ok {
		return fmt.Errorf("memory: pool %d account %s: %w", poolID, account.Hex(), domain.ErrNotFound)
	}
	if p.Withdrawn {
		return fmt.Errorf("memory: pool %d account %s: %w", poolID, account.Hex(), domain.ErrAlreadyWithdrawn)
	}
	p.Withdrawn = true
	return nil
}

// TopicStore is an in-memory domain.TopicStore.
type TopicStore struct {
	mu     sync.RWMutex
	topics map[uint64]*domain.Topic
}

// NewTopicStore creates an empty TopicStore.
func NewTopicStore() *TopicStore {
	return &TopicStore{topics: make(map[uint64]*domain.Topic)}
}

func (s *TopicStore) Create(_ context.Context, t *domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[t.ID]; ok {
		return fmt.Errorf("memory: topic %d exists", t.ID)
	}
	cp := *t
	s.topics[t.ID] = &cp
	return nil
}

func (s *TopicStore) Get(_ context.Context, id uint64) (*domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	if !ok {
		return nil, fmt.Errorf("memory: topic %d: %w", id, domain.ErrTopicNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *TopicStore) Update(_ context.Context, t *domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[t.ID]; !ok {
		return fmt.Errorf("memory: topic %d: %w", t.ID, domain.ErrTopicNotFound)
	}
	cp := *t
	s.topics[t.ID] = &cp
	return nil
}

func (s *TopicStore) List(_ context.Context, opts domain.ListOpts) ([]*domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.topics))
	for id := range s.topics {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*domain.Topic, 0)
	for i, id := range ids {
		if i < opts.Offset {
			continue
		}
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		cp := *s.topics[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *TopicStore) MaxID(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint64
	for id := range s.topics {
		if id > max {
			max = id
		}
	}
	return max, nil
}

// WithdrawalStore is an in-memory domain.WithdrawalStore.
type WithdrawalStore struct {
	mu   sync.RWMutex
	recs []*domain.WithdrawalRecord
}

// NewWithdrawalStore creates an empty WithdrawalStore.
func NewWithdrawalStore() *WithdrawalStore {
	return &WithdrawalStore{}
}

func (s *WithdrawalStore) Create(_ context.Context, rec *domain.WithdrawalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs = append(s.recs, &cp)
	return nil
}

func (s *WithdrawalStore) ListByPool(_ context.Context, poolID uint64, opts domain.ListOpts) ([]*domain.WithdrawalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.WithdrawalRecord
	for _, r := range s.recs {
		if r.PoolID == poolID {
			cp := *r
			out = append(out, &cp)
		}
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *WithdrawalStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]*domain.WithdrawalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.WithdrawalRecord
	for _, r := range s.recs {
		if r.CreatedAt.Before(cutoff) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AuditStore is an in-memory domain.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []domain.AuditEntry
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{nextID: 1}
}

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        s.nextID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	s.nextID++
	return nil
}

func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, len(s.entries))
	copy(out, s.entries)
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ domain.PoolStore        = (*PoolStore)(nil)
	_ domain.ParticipantStore = (*ParticipantStore)(nil)
	_ domain.TopicStore       = (*TopicStore)(nil)
	_ domain.WithdrawalStore  = (*WithdrawalStore)(nil)
	_ domain.AuditStore       = (*AuditStore)(nil)
)
