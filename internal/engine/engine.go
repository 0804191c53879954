// Package engine implements the pool lifecycle and settlement core: stake
// intake with fee splitting, the join-window and maturity rules, oracle-driven
// resolution with bounded stale retries, and exactly-once pro-rata payout.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// Deps bundles the engine's external collaborators.
type Deps struct {
	Pools        domain.PoolStore
	Participants domain.ParticipantStore
	Withdrawals  domain.WithdrawalStore
	Topics       domain.TopicRegistry
	Custody      domain.CustodyToken
	// Sink receives lifecycle events; may be nil.
	Sink   domain.EventSink
	Logger *slog.Logger
}

// Engine is the concurrent-access ledger. A single mutex serializes every
// mutating call so each one executes as an atomic transaction: fully applied
// or fully rejected, with no partial state visible to other callers.
type Engine struct {
	params Params

	pools        domain.PoolStore
	participants domain.ParticipantStore
	withdrawals  domain.WithdrawalStore
	topics       domain.TopicRegistry
	custody      domain.CustodyToken
	sink         domain.EventSink
	logger       *slog.Logger

	now func() time.Time

	mu     sync.Mutex
	nextID uint64
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New validates params, recovers the id sequence from the pool store, and
// returns a ready engine.
func New(ctx context.Context, params Params, deps Deps, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if deps.Pools == nil || deps.Participants == nil || deps.Withdrawals == nil ||
		deps.Topics == nil || deps.Custody == nil {
		return nil, fmt.Errorf("engine: missing dependency")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		params:       params,
		pools:        deps.Pools,
		participants: deps.Participants,
		withdrawals:  deps.Withdrawals,
		topics:       deps.Topics,
		custody:      deps.Custody,
		sink:         deps.Sink,
		logger:       logger.With(slog.String("component", "engine")),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	maxID, err := e.pools.MaxID(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: recover pool id sequence: %w", err)
	}
	e.nextID = maxID + 1

	return e, nil
}

// Params returns the engine's immutable configuration.
func (e *Engine) Params() Params {
	return e.params
}

// CreateAmountAndFee previews the net stake and fee for a create call.
func (e *Engine) CreateAmountAndFee(mode domain.PoolMode, stake *big.Int) (net, fee *big.Int) {
	return SplitStakeAndFee(stake, e.params.feeRate(mode, false))
}

// JoinAmountAndFee previews the net stake and fee for a join call.
func (e *Engine) JoinAmountAndFee(mode domain.PoolMode, stake *big.Int) (net, fee *big.Int) {
	return SplitStakeAndFee(stake, e.params.feeRate(mode, true))
}

// GetPool returns a snapshot of a pool.
func (e *Engine) GetPool(ctx context.Context, id uint64) (*domain.Pool, error) {
	p, err := e.pools.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// ListPools returns pool snapshots.
func (e *Engine) ListPools(ctx context.Context, opts domain.ListOpts) ([]*domain.Pool, error) {
	return e.pools.List(ctx, opts)
}

// GetParticipant returns one account's entry in a pool.
func (e *Engine) GetParticipant(ctx context.Context, poolID uint64, account domain.Address) (*domain.Participant, error) {
	return e.participants.Get(ctx, poolID, account)
}

// ListParticipants returns a pool's participant entries.
func (e *Engine) ListParticipants(ctx context.Context, poolID uint64, opts domain.ListOpts) ([]*domain.Participant, error) {
	return e.participants.ListByPool(ctx, poolID, opts)
}

// IsWinner reports whether account picked the resolved winning side.
func (e *Engine) IsWinner(ctx context.Context, poolID uint64, account domain.Address) (bool, error) {
	p, err := e.pools.Get(ctx, poolID)
	if err != nil {
		return false, err
	}
	if p.Phase != domain.PoolResolved {
		return false, &domain.StateError{PoolID: poolID, State: p.StateAt(e.now())}
	}
	entry, err := e.participants.Get(ctx, poolID, account)
	if err != nil {
		return false, err
	}
	return entry.Prediction == p.Result, nil
}

// emit publishes a lifecycle event, stamping the engine clock.
func (e *Engine) emit(ctx context.Context, ev domain.PoolEvent) {
	if e.sink == nil {
		return
	}
	ev.At = e.now()
	e.sink.Emit(ctx, ev)
}
