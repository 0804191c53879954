package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// JoinPool adds the caller to an open event-gate pool with the given side
// and gross stake. Joins are first-come-first-served against the join window,
// the player cap, and the one-entry-per-account rule.
func (e *Engine) JoinPool(ctx context.Context, caller domain.Address, poolID uint64, prediction string, stake *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.pools.Get(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.Mode != domain.PoolModeEventGate {
		return fmt.Errorf("engine: pool %d is %s: %w", poolID, pool.Mode, domain.ErrWrongPoolMode)
	}
	if stake == nil || stake.Cmp(e.params.MinStake) < 0 {
		return fmt.Errorf("engine: stake: %w", domain.ErrStakeTooSmall)
	}
	return e.join(ctx, caller, pool, prediction, 1, stake)
}

// JoinPoll adds the caller to an open poll pool, buying the given ticket
// quantity at the pool's fixed ticket price.
func (e *Engine) JoinPoll(ctx context.Context, caller domain.Address, poolID uint64, prediction string, tickets uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.pools.Get(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.Mode != domain.PoolModePoll {
		return fmt.Errorf("engine: pool %d is %s: %w", poolID, pool.Mode, domain.ErrWrongPoolMode)
	}
	if tickets < 1 {
		return fmt.Errorf("engine: zero tickets: %w", domain.ErrStakeTooSmall)
	}

	stake := new(big.Int).Mul(pool.TicketPrice, new(big.Int).SetUint64(tickets))
	return e.join(ctx, caller, pool, prediction, tickets, stake)
}

// join performs the shared join path. Caller holds e.mu.
func (e *Engine) join(ctx context.Context, caller domain.Address, pool *domain.Pool, prediction string, tickets uint64, stake *big.Int) error {
	now := e.now()
	if state := pool.StateAt(now); state != domain.PoolOpen {
		return &domain.StateError{PoolID: pool.ID, State: state}
	}
	if !pool.ValidSide(prediction) {
		return fmt.Errorf("engine: prediction %q: %w", prediction, domain.ErrInvalidPrediction)
	}
	if pool.PlayerCount >= e.params.maxPlayers(pool.Mode) {
		return fmt.Errorf("engine: pool %d: %w", pool.ID, domain.ErrPoolFull)
	}

	if _, err := e.participants.Get(ctx, pool.ID, caller); err == nil {
		return fmt.Errorf("engine: pool %d account %s: %w", pool.ID, caller.Hex(), domain.ErrPlayerAlreadyInPool)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("engine: lookup participant: %w", err)
	}

	net, fee, err := e.collectStake(ctx, caller, stake, e.params.feeRate(pool.Mode, true))
	if err != nil {
		return err
	}

	entry := &domain.Participant{
		PoolID:     pool.ID,
		Account:    caller,
		Prediction: prediction,
		Tickets:    tickets,
		NetStake:   net,
		FeePaid:    fee,
		JoinedAt:   now,
	}
	if err := e.participants.Create(ctx, entry); err != nil {
		e.refund(ctx, caller, stake)
		return fmt.Errorf("engine: persist participant: %w", err)
	}

	updated := pool.Clone()
	side := updated.StakeBySide[prediction]
	if side == nil {
		side = new(big.Int)
	}
	updated.StakeBySide[prediction] = new(big.Int).Add(side, net)
	updated.PlayerCount++
	updated.UpdatedAt = now
	if err := e.pools.Update(ctx, updated); err != nil {
		e.discardParticipant(ctx, pool.ID, caller)
		e.refund(ctx, caller, stake)
		return fmt.Errorf("engine: persist pool: %w", err)
	}
	if err := e.routeFee(ctx, fee); err != nil {
		e.restorePool(ctx, pool)
		e.discardParticipant(ctx, pool.ID, caller)
		e.refund(ctx, caller, stake)
		return err
	}

	e.logger.InfoContext(ctx, "pool joined",
		slog.Uint64("pool_id", pool.ID),
		slog.String("account", caller.Hex()),
		slog.String("side", prediction),
		slog.String("net_stake", net.String()),
	)
	e.emit(ctx, domain.PoolEvent{
		Type:   domain.EventPoolJoined,
		PoolID: pool.ID,
		Actor:  caller.Hex(),
		State:  domain.PoolOpen,
		Side:   prediction,
		Stake:  net.String(),
	})

	return nil
}
