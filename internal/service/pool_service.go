package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/engine"
)

// closeLockTTL bounds how long a replica may fence a pool's close path.
const closeLockTTL = 30 * time.Second

// PoolService fronts the engine for the API layer. It adds cache-first
// reads, cache invalidation on every mutation, and distributed fencing of
// resolution attempts so replicas never race a close.
type PoolService struct {
	eng    *engine.Engine
	cache  domain.PoolCache
	locks  domain.LockManager
	logger *slog.Logger
}

// NewPoolService creates a PoolService. cache and locks may be nil in
// standalone deployments; the service then degrades to direct engine calls.
func NewPoolService(eng *engine.Engine, cache domain.PoolCache, locks domain.LockManager, logger *slog.Logger) *PoolService {
	return &PoolService{
		eng:    eng,
		cache:  cache,
		locks:  locks,
		logger: logger.With(slog.String("component", "pool_service")),
	}
}

// Params exposes the engine's configuration for read-only API surfaces.
func (s *PoolService) Params() engine.Params {
	return s.eng.Params()
}

// CreatePool opens an event-gate pool.
func (s *PoolService) CreatePool(
	ctx context.Context,
	caller domain.Address,
	eventParams [][]byte,
	maturities []time.Time,
	topicIDs []uint64,
	prediction string,
	stake *big.Int,
) (uint64, error) {
	id, err := s.eng.CreatePool(ctx, caller, eventParams, maturities, topicIDs, prediction, stake)
	if err != nil {
		return 0, err
	}
	s.refreshCache(ctx, id)
	return id, nil
}

// CreatePoll opens a poll pool.
func (s *PoolService) CreatePoll(
	ctx context.Context,
	caller domain.Address,
	eventParam []byte,
	topicID uint64,
	maturity time.Time,
	options []string,
	prediction string,
	tickets uint64,
	ticketPrice *big.Int,
) (uint64, error) {
	id, err := s.eng.CreatePoll(ctx, caller, eventParam, topicID, maturity, options, prediction, tickets, ticketPrice)
	if err != nil {
		return 0, err
	}
	s.refreshCache(ctx, id)
	return id, nil
}

// JoinPool adds the caller to an event-gate pool.
func (s *PoolService) JoinPool(ctx context.Context, caller domain.Address, poolID uint64, prediction string, stake *big.Int) error {
	if err := s.eng.JoinPool(ctx, caller, poolID, prediction, stake); err != nil {
		return err
	}
	s.refreshCache(ctx, poolID)
	return nil
}

// JoinPoll adds the caller to a poll pool.
func (s *PoolService) JoinPoll(ctx context.Context, caller domain.Address, poolID uint64, prediction string, tickets uint64) error {
	if err := s.eng.JoinPoll(ctx, caller, poolID, prediction, tickets); err != nil {
		return err
	}
	s.refreshCache(ctx, poolID)
	return nil
}

// Close attempts to resolve a pool, fenced by a distributed lock so only one
// replica evaluates the oracle at a time.
func (s *PoolService) Close(ctx context.Context, caller domain.Address, poolID uint64) error {
	unlock, err := s.fence(ctx, poolID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.eng.Close(ctx, caller, poolID); err != nil {
		return err
	}
	s.refreshCache(ctx, poolID)
	return nil
}

// CloseMany closes several pools with per-pool failure isolation.
func (s *PoolService) CloseMany(ctx context.Context, caller domain.Address, poolIDs []uint64) []engine.BatchResult {
	results := make([]engine.BatchResult, 0, len(poolIDs))
	for _, id := range poolIDs {
		results = append(results, engine.BatchResult{PoolID: id, Err: s.Close(ctx, caller, id)})
	}
	return results
}

// SetManualResult records an owner-supplied result for a frozen pool.
func (s *PoolService) SetManualResult(ctx context.Context, caller domain.Address, poolID uint64, result string) error {
	if err := s.eng.SetManualResult(ctx, caller, poolID, result); err != nil {
		return err
	}
	s.refreshCache(ctx, poolID)
	return nil
}

// Withdraw pays out the caller's winnings.
func (s *PoolService) Withdraw(ctx context.Context, caller domain.Address, poolID uint64) (*domain.WithdrawalRecord, error) {
	rec, err := s.eng.Withdraw(ctx, caller, poolID)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx, poolID)
	return rec, nil
}

// WithdrawMany withdraws from several pools with per-pool failure isolation.
func (s *PoolService) WithdrawMany(ctx context.Context, caller domain.Address, poolIDs []uint64) []engine.BatchResult {
	results := make([]engine.BatchResult, 0, len(poolIDs))
	for _, id := range poolIDs {
		_, err := s.Withdraw(ctx, caller, id)
		results = append(results, engine.BatchResult{PoolID: id, Err: err})
	}
	return results
}

// GetPool retrieves a pool snapshot, cache first.
func (s *PoolService) GetPool(ctx context.Context, poolID uint64) (*domain.Pool, error) {
	if s.cache != nil {
		if pool, err := s.cache.Get(ctx, poolID); err == nil {
			return pool, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "pool_service: cache get failed",
				slog.Uint64("pool_id", poolID),
				slog.String("error", err.Error()),
			)
		}
	}

	pool, err := s.eng.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, pool); cacheErr != nil {
			s.logger.WarnContext(ctx, "pool_service: cache set failed",
				slog.Uint64("pool_id", poolID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return pool, nil
}

// ListPools returns pool snapshots straight from the store.
func (s *PoolService) ListPools(ctx context.Context, opts domain.ListOpts) ([]*domain.Pool, error) {
	return s.eng.ListPools(ctx, opts)
}

// GetParticipant returns one account's entry in a pool.
func (s *PoolService) GetParticipant(ctx context.Context, poolID uint64, account domain.Address) (*domain.Participant, error) {
	return s.eng.GetParticipant(ctx, poolID, account)
}

// ListParticipants returns a pool's entries.
func (s *PoolService) ListParticipants(ctx context.Context, poolID uint64, opts domain.ListOpts) ([]*domain.Participant, error) {
	return s.eng.ListParticipants(ctx, poolID, opts)
}

// IsWinner reports whether account picked the winning side of a resolved
// pool.
func (s *PoolService) IsWinner(ctx context.Context, poolID uint64, account domain.Address) (bool, error) {
	return s.eng.IsWinner(ctx, poolID, account)
}

// fence acquires the pool's close lock when a lock manager is configured.
func (s *PoolService) fence(ctx context.Context, poolID uint64) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	unlock, err := s.locks.Acquire(ctx, "pool:close:"+strconv.FormatUint(poolID, 10), closeLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("pool_service: close pool %d: %w", poolID, err)
		}
		return nil, fmt.Errorf("pool_service: acquire close lock %d: %w", poolID, err)
	}
	return unlock, nil
}

// refreshCache replaces a pool's cached snapshot after a mutation. Cache
// failures are logged, never surfaced: the store remains authoritative.
func (s *PoolService) refreshCache(ctx context.Context, poolID uint64) {
	if s.cache == nil {
		return
	}
	pool, err := s.eng.GetPool(ctx, poolID)
	if err != nil {
		_ = s.cache.Invalidate(ctx, poolID)
		return
	}
	if err := s.cache.Set(ctx, pool); err != nil {
		s.logger.WarnContext(ctx, "pool_service: cache refresh failed",
			slog.Uint64("pool_id", poolID),
			slog.String("error", err.Error()),
		)
	}
}
