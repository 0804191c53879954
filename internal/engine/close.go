package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// Close attempts to resolve a mature pool. Any account may call it. If every
// event has oracle data the pool resolves terminally; a missing datum records
// a stale retry with a cooldown instead. After the retry budget is exhausted
// the next eligible attempt freezes the pool in manual resolution.
func (e *Engine) Close(ctx context.Context, caller domain.Address, poolID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.pools.Get(ctx, poolID)
	if err != nil {
		return err
	}
	now := e.now()

	switch pool.Phase {
	case domain.PoolResolved, domain.PoolManual:
		return &domain.StateError{PoolID: poolID, State: pool.Phase}
	case domain.PoolOpen:
		if state := pool.StateAt(now); state != domain.PoolAwaitingResolution {
			return &domain.StateError{PoolID: poolID, State: state}
		}
	case domain.PoolStale:
		if now.Before(pool.NextRetryAt) {
			return &domain.RetryError{PoolID: poolID, Retries: pool.StaleRetries, NextRetryAt: pool.NextRetryAt}
		}
		if pool.StaleRetries >= e.params.MaxStaleRetries {
			return e.freezeManual(ctx, caller, pool)
		}
	}

	result, hasData, err := e.evaluatePool(ctx, pool)
	if err != nil {
		return err
	}
	if !hasData {
		return e.markStale(ctx, caller, pool)
	}

	updated := pool.Clone()
	updated.Phase = domain.PoolResolved
	updated.Result = result
	updated.UpdatedAt = now
	if err := e.pools.Update(ctx, updated); err != nil {
		return fmt.Errorf("engine: persist resolution: %w", err)
	}

	e.logger.InfoContext(ctx, "pool resolved",
		slog.Uint64("pool_id", pool.ID),
		slog.String("result", result),
		slog.String("closer", caller.Hex()),
	)
	e.emit(ctx, domain.PoolEvent{
		Type:   domain.EventPoolResolved,
		PoolID: pool.ID,
		Actor:  caller.Hex(),
		State:  domain.PoolResolved,
		Result: result,
	})
	return nil
}

// BatchResult reports one pool's outcome in a batch call.
type BatchResult struct {
	PoolID uint64
	Err    error
}

// CloseMany closes several pools, isolating failures: one pool's error never
// aborts the rest.
func (e *Engine) CloseMany(ctx context.Context, caller domain.Address, poolIDs []uint64) []BatchResult {
	results := make([]BatchResult, 0, len(poolIDs))
	for _, id := range poolIDs {
		results = append(results, BatchResult{PoolID: id, Err: e.Close(ctx, caller, id)})
	}
	return results
}

// SetManualResult is the owner override for pools frozen in manual
// resolution: it records the out-of-band result and re-opens settlement.
func (e *Engine) SetManualResult(ctx context.Context, caller domain.Address, poolID uint64, result string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.params.Owner {
		return fmt.Errorf("engine: set manual result: %w", domain.ErrUnauthorized)
	}
	pool, err := e.pools.Get(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.Phase != domain.PoolManual {
		return &domain.StateError{PoolID: poolID, State: pool.StateAt(e.now())}
	}
	if !pool.ValidSide(result) {
		return fmt.Errorf("engine: result %q: %w", result, domain.ErrInvalidPrediction)
	}

	updated := pool.Clone()
	updated.Phase = domain.PoolResolved
	updated.Result = result
	updated.UpdatedAt = e.now()
	if err := e.pools.Update(ctx, updated); err != nil {
		return fmt.Errorf("engine: persist manual result: %w", err)
	}

	e.logger.InfoContext(ctx, "manual result set",
		slog.Uint64("pool_id", poolID),
		slog.String("result", result),
	)
	e.emit(ctx, domain.PoolEvent{
		Type:   domain.EventPoolResolved,
		PoolID: poolID,
		Actor:  caller.Hex(),
		State:  domain.PoolResolved,
		Result: result,
	})
	return nil
}

// evaluatePool asks the oracle facade for every event's outcome. The first
// event without data short-circuits with hasData false. Event-gate pools
// AND their boolean outcomes; poll pools take the oracle's option directly.
func (e *Engine) evaluatePool(ctx context.Context, pool *domain.Pool) (result string, hasData bool, err error) {
	if pool.Mode == domain.PoolModePoll {
		outcome, ok := e.evaluateEvent(ctx, pool, pool.Events[0])
		if !ok {
			return "", false, nil
		}
		if !pool.ValidSide(outcome.Value) {
			// Data exists but names no declared option; unusable, treat
			// as missing so the retry/manual path takes over.
			e.logger.WarnContext(ctx, "oracle result not in option set",
				slog.Uint64("pool_id", pool.ID),
				slog.String("value", outcome.Value),
			)
			return "", false, nil
		}
		return outcome.Value, true, nil
	}

	result = domain.SideYes
	for _, ev := range pool.Events {
		outcome, ok := e.evaluateEvent(ctx, pool, ev)
		if !ok {
			return "", false, nil
		}
		switch outcome.Value {
		case domain.SideYes:
		case domain.SideNo:
			result = domain.SideNo
		default:
			e.logger.WarnContext(ctx, "oracle returned non-boolean outcome",
				slog.Uint64("pool_id", pool.ID),
				slog.Uint64("topic_id", ev.TopicID),
				slog.String("value", outcome.Value),
			)
			return "", false, nil
		}
	}
	return result, true, nil
}

// evaluateEvent resolves one event, degrading every failure to "no data"
// so oracle hiccups surface as staleness rather than hard errors.
func (e *Engine) evaluateEvent(ctx context.Context, pool *domain.Pool, ev domain.EventSpec) (domain.Outcome, bool) {
	evaluator, err := e.topics.Evaluator(ctx, ev.TopicID)
	if err != nil {
		e.logger.WarnContext(ctx, "evaluator lookup failed",
			slog.Uint64("pool_id", pool.ID),
			slog.Uint64("topic_id", ev.TopicID),
			slog.String("error", err.Error()),
		)
		return domain.Outcome{}, false
	}
	outcome, err := evaluator.Evaluate(ctx, ev)
	if err != nil {
		e.logger.WarnContext(ctx, "evaluation failed",
			slog.Uint64("pool_id", pool.ID),
			slog.Uint64("topic_id", ev.TopicID),
			slog.String("error", err.Error()),
		)
		return domain.Outcome{}, false
	}
	if !outcome.HasData {
		return domain.Outcome{}, false
	}
	return outcome, true
}

// markStale records a failed resolution attempt: bump the retry counter and
// start the cooldown. Retries only grow and never pass the configured cap.
func (e *Engine) markStale(ctx context.Context, caller domain.Address, pool *domain.Pool) error {
	now := e.now()
	updated := pool.Clone()
	updated.Phase = domain.PoolStale
	updated.StaleRetries++
	updated.NextRetryAt = now.Add(e.params.StaleExtensionPeriod)
	updated.UpdatedAt = now
	if err := e.pools.Update(ctx, updated); err != nil {
		return fmt.Errorf("engine: persist stale: %w", err)
	}

	e.logger.InfoContext(ctx, "pool stale",
		slog.Uint64("pool_id", pool.ID),
		slog.Uint64("retries", uint64(updated.StaleRetries)),
		slog.Time("next_retry_at", updated.NextRetryAt),
	)
	next := updated.NextRetryAt
	e.emit(ctx, domain.PoolEvent{
		Type:        domain.EventPoolStale,
		PoolID:      pool.ID,
		Actor:       caller.Hex(),
		State:       domain.PoolStale,
		Retries:     updated.StaleRetries,
		NextRetryAt: &next,
	})
	return nil
}

// freezeManual moves a retry-exhausted pool into manual resolution, the
// terminal fallback until an owner override supplies a result.
func (e *Engine) freezeManual(ctx context.Context, caller domain.Address, pool *domain.Pool) error {
	updated := pool.Clone()
	updated.Phase = domain.PoolManual
	updated.UpdatedAt = e.now()
	if err := e.pools.Update(ctx, updated); err != nil {
		return fmt.Errorf("engine: persist manual freeze: %w", err)
	}

	e.logger.WarnContext(ctx, "pool frozen for manual resolution",
		slog.Uint64("pool_id", pool.ID),
		slog.Uint64("retries", uint64(pool.StaleRetries)),
	)
	e.emit(ctx, domain.PoolEvent{
		Type:    domain.EventManualResolution,
		PoolID:  pool.ID,
		Actor:   caller.Hex(),
		State:   domain.PoolManual,
		Retries: pool.StaleRetries,
	})
	return nil
}
