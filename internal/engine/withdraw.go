package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/google/uuid"
)

// Withdraw pays out the caller's winnings from a resolved pool: their own net
// stake plus a pro-rata share of every losing side's pooled stake. Integer
// division truncates; the remainder stays in escrow. The withdrawn flag is
// persisted before any value moves, so a re-entrant or raced second call can
// never pay twice.
func (e *Engine) Withdraw(ctx context.Context, caller domain.Address, poolID uint64) (*domain.WithdrawalRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.pools.Get(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Phase != domain.PoolResolved {
		return nil, &domain.StateError{PoolID: poolID, State: pool.StateAt(e.now())}
	}

	entry, err := e.participants.Get(ctx, poolID, caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("engine: pool %d account %s: %w", poolID, caller.Hex(), domain.ErrPlayerNotInPool)
		}
		return nil, fmt.Errorf("engine: lookup participant: %w", err)
	}
	if entry.Prediction != pool.Result {
		return nil, fmt.Errorf("engine: pool %d account %s: %w", poolID, caller.Hex(), domain.ErrPlayerDidNotWin)
	}
	if entry.Withdrawn {
		return nil, fmt.Errorf("engine: pool %d account %s: %w", poolID, caller.Hex(), domain.ErrAlreadyWithdrawn)
	}

	winShare := winningsShare(entry.NetStake, pool.SideStake(pool.Result), pool.TotalStaked())
	payout := new(big.Int).Add(entry.NetStake, winShare)

	// Flag first. If the custody transfer fails afterwards the flag stays
	// set and the incident is resolved operationally; the reverse order
	// would risk double payout.
	if err := e.participants.SetWithdrawn(ctx, poolID, caller); err != nil {
		return nil, fmt.Errorf("engine: flag withdrawal: %w", err)
	}
	if err := e.custody.Transfer(ctx, caller, payout); err != nil {
		e.logger.ErrorContext(ctx, "payout transfer failed after flagging",
			slog.Uint64("pool_id", poolID),
			slog.String("account", caller.Hex()),
			slog.String("payout", payout.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("engine: payout transfer: %w", err)
	}

	rec := &domain.WithdrawalRecord{
		ID:        uuid.NewString(),
		PoolID:    poolID,
		Account:   caller,
		Stake:     new(big.Int).Set(entry.NetStake),
		WinShare:  winShare,
		Payout:    payout,
		CreatedAt: e.now(),
	}
	if err := e.withdrawals.Create(ctx, rec); err != nil {
		// The payout already happened; the record is best-effort.
		e.logger.WarnContext(ctx, "withdrawal record not persisted",
			slog.Uint64("pool_id", poolID),
			slog.String("account", caller.Hex()),
			slog.String("error", err.Error()),
		)
	}

	e.logger.InfoContext(ctx, "winnings withdrawn",
		slog.Uint64("pool_id", poolID),
		slog.String("account", caller.Hex()),
		slog.String("payout", payout.String()),
		slog.String("win_share", winShare.String()),
	)
	e.emit(ctx, domain.PoolEvent{
		Type:   domain.EventWinningsWithdrawn,
		PoolID: poolID,
		Actor:  caller.Hex(),
		State:  domain.PoolResolved,
		Stake:  entry.NetStake.String(),
		Payout: payout.String(),
	})

	return rec, nil
}

// WithdrawMany withdraws from several pools with per-pool failure isolation.
func (e *Engine) WithdrawMany(ctx context.Context, caller domain.Address, poolIDs []uint64) []BatchResult {
	results := make([]BatchResult, 0, len(poolIDs))
	for _, id := range poolIDs {
		_, err := e.Withdraw(ctx, caller, id)
		results = append(results, BatchResult{PoolID: id, Err: err})
	}
	return results
}

// winningsShare computes stake * (total - winningTotal) / winningTotal with
// truncating integer division.
func winningsShare(stake, winningTotal, total *big.Int) *big.Int {
	if winningTotal.Sign() == 0 {
		return new(big.Int)
	}
	losing := new(big.Int).Sub(total, winningTotal)
	share := new(big.Int).Mul(stake, losing)
	return share.Div(share, winningTotal)
}
