package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// CreatePool opens an event-gate pool staking on one or more boolean events.
// The three event-parallel slices must have equal lengths. The pool resolves
// "yes" only if every event resolves "yes". Returns the new pool id.
func (e *Engine) CreatePool(
	ctx context.Context,
	caller domain.Address,
	eventParams [][]byte,
	maturities []time.Time,
	topicIDs []uint64,
	prediction string,
	stake *big.Int,
) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(eventParams)
	if n < 1 || n > e.params.MaxEventsPerPool {
		return 0, fmt.Errorf("engine: %d events: %w", n, domain.ErrInvalidEventCount)
	}
	if len(maturities) != n || len(topicIDs) != n {
		return 0, fmt.Errorf("engine: params=%d maturities=%d topics=%d: %w",
			n, len(maturities), len(topicIDs), domain.ErrLengthMismatch)
	}
	if prediction != domain.SideYes && prediction != domain.SideNo {
		return 0, fmt.Errorf("engine: prediction %q: %w", prediction, domain.ErrInvalidPrediction)
	}

	events := make([]domain.EventSpec, n)
	for i := 0; i < n; i++ {
		events[i] = domain.EventSpec{
			TopicID:  topicIDs[i],
			Params:   eventParams[i],
			Maturity: maturities[i],
		}
	}
	if err := e.validateEvents(ctx, events); err != nil {
		return 0, err
	}

	return e.openPool(ctx, caller, &domain.Pool{
		Mode:   domain.PoolModeEventGate,
		Events: events,
	}, prediction, 1, stake)
}

// CreatePoll opens a poll pool over a declared option set. The creator fixes
// the per-ticket price; every participant (creator included) stakes
// tickets x price. Returns the new pool id.
func (e *Engine) CreatePoll(
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
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(options) < 2 || len(options) > e.params.MaxOptionsPerPool {
		return 0, fmt.Errorf("engine: %d options: %w", len(options), domain.ErrInvalidOptions)
	}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if opt == "" {
			return 0, fmt.Errorf("engine: empty option: %w", domain.ErrInvalidOptions)
		}
		if seen[opt] {
			return 0, fmt.Errorf("engine: duplicate option %q: %w", opt, domain.ErrInvalidOptions)
		}
		seen[opt] = true
	}
	if !seen[prediction] {
		return 0, fmt.Errorf("engine: prediction %q not an option: %w", prediction, domain.ErrInvalidPrediction)
	}
	if tickets < 1 {
		return 0, fmt.Errorf("engine: zero tickets: %w", domain.ErrStakeTooSmall)
	}

	events := []domain.EventSpec{{TopicID: topicID, Params: eventParam, Maturity: maturity}}
	if err := e.validateEvents(ctx, events); err != nil {
		return 0, err
	}
	if ticketPrice == nil || ticketPrice.Cmp(e.params.MinStake) < 0 {
		return 0, fmt.Errorf("engine: ticket price: %w", domain.ErrStakeTooSmall)
	}

	stake := new(big.Int).Mul(ticketPrice, new(big.Int).SetUint64(tickets))
	return e.openPool(ctx, caller, &domain.Pool{
		Mode:        domain.PoolModePoll,
		Events:      events,
		Options:     append([]string(nil), options...),
		TicketPrice: new(big.Int).Set(ticketPrice),
	}, prediction, tickets, stake)
}

// validateEvents checks maturity bounds, topic status, and parameter encoding
// for every event spec. No state is touched.
func (e *Engine) validateEvents(ctx context.Context, events []domain.EventSpec) error {
	now := e.now()
	minM := now.Add(e.params.MinMaturityPeriod)
	maxM := now.Add(e.params.MaxMaturityPeriod)

	for i, ev := range events {
		if ev.Maturity.Before(minM) || ev.Maturity.After(maxM) {
			return fmt.Errorf("engine: event %d maturity %s: %w",
				i, ev.Maturity.UTC().Format(time.RFC3339), domain.ErrMaturityOutOfBounds)
		}
		enabled, err := e.topics.IsEnabled(ctx, ev.TopicID)
		if err != nil {
			return fmt.Errorf("engine: event %d topic %d: %w", i, ev.TopicID, err)
		}
		if !enabled {
			return fmt.Errorf("engine: event %d topic %d: %w", i, ev.TopicID, domain.ErrTopicDisabled)
		}
		evaluator, err := e.topics.Evaluator(ctx, ev.TopicID)
		if err != nil {
			return fmt.Errorf("engine: event %d topic %d: %w", i, ev.TopicID, err)
		}
		ok, err := evaluator.Validate(ctx, ev)
		if err != nil {
			return fmt.Errorf("engine: event %d validate: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("engine: event %d topic %d: %w", i, ev.TopicID, domain.ErrInvalidEventParam)
		}
	}
	return nil
}

// openPool collects the stake, assigns the pool id, and persists the pool
// with its creator entry. Caller holds e.mu.
func (e *Engine) openPool(
	ctx context.Context,
	caller domain.Address,
	pool *domain.Pool,
	prediction string,
	tickets uint64,
	stake *big.Int,
) (uint64, error) {
	if pool.Mode == domain.PoolModeEventGate {
		if stake == nil || stake.Cmp(e.params.MinStake) < 0 {
			return 0, fmt.Errorf("engine: stake: %w", domain.ErrStakeTooSmall)
		}
	}

	net, fee, err := e.collectStake(ctx, caller, stake, e.params.feeRate(pool.Mode, false))
	if err != nil {
		return 0, err
	}

	now := e.now()
	pool.ID = e.nextID
	pool.Creator = caller
	pool.Phase = domain.PoolOpen
	pool.StakeBySide = map[string]*big.Int{prediction: net}
	pool.PlayerCount = 1
	pool.CreatedAt = now
	pool.UpdatedAt = now
	pool.JoinDeadline = now.Add(e.params.JoinPeriod)
	if earliest := pool.EarliestMaturity(); earliest.Before(pool.JoinDeadline) {
		pool.JoinDeadline = earliest
	}

	if err := e.pools.Create(ctx, pool); err != nil {
		e.refund(ctx, caller, stake)
		return 0, fmt.Errorf("engine: persist pool: %w", err)
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
		e.discardPool(ctx, pool.ID)
		e.refund(ctx, caller, stake)
		return 0, fmt.Errorf("engine: persist creator entry: %w", err)
	}
	if err := e.routeFee(ctx, fee); err != nil {
		e.discardParticipant(ctx, pool.ID, caller)
		e.discardPool(ctx, pool.ID)
		e.refund(ctx, caller, stake)
		return 0, err
	}
	e.nextID++

	e.logger.InfoContext(ctx, "pool created",
		slog.Uint64("pool_id", pool.ID),
		slog.String("mode", string(pool.Mode)),
		slog.String("creator", caller.Hex()),
		slog.String("net_stake", net.String()),
	)
	e.emit(ctx, domain.PoolEvent{
		Type:   domain.EventNewPool,
		PoolID: pool.ID,
		Actor:  caller.Hex(),
		State:  domain.PoolOpen,
		Side:   prediction,
		Stake:  net.String(),
	})

	return pool.ID, nil
}

// collectStake debits the gross stake from payer into escrow and splits it.
// The fee stays in escrow until routeFee, so a failed operation can hand the
// whole debit back with a single refund.
func (e *Engine) collectStake(ctx context.Context, payer domain.Address, stake *big.Int, rateBps uint32) (net, fee *big.Int, err error) {
	if err := e.custody.TransferFrom(ctx, payer, stake); err != nil {
		return nil, nil, fmt.Errorf("engine: collect stake: %w", err)
	}
	net, fee = SplitStakeAndFee(stake, rateBps)
	return net, fee, nil
}

// routeFee pays the protocol fee out of escrow to the fee recipient. Called
// after the operation's store writes have landed.
func (e *Engine) routeFee(ctx context.Context, fee *big.Int) error {
	if fee.Sign() <= 0 {
		return nil
	}
	if err := e.custody.Transfer(ctx, e.params.FeeRecipient, fee); err != nil {
		return fmt.Errorf("engine: route fee: %w", err)
	}
	return nil
}

// refund hands a debited gross stake back to the payer after a failed
// operation. A refund failure strands the value in escrow; it is logged.
func (e *Engine) refund(ctx context.Context, payer domain.Address, amount *big.Int) {
	if err := e.custody.Transfer(ctx, payer, amount); err != nil {
		e.logger.ErrorContext(ctx, "stake refund failed",
			slog.String("account", payer.Hex()),
			slog.String("amount", amount.String()),
			slog.String("error", err.Error()),
		)
	}
}

// discardPool removes a pool row written by an operation that later failed.
func (e *Engine) discardPool(ctx context.Context, id uint64) {
	if err := e.pools.Delete(ctx, id); err != nil {
		e.logger.ErrorContext(ctx, "pool unwind failed",
			slog.Uint64("pool_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// discardParticipant removes an entry written by an operation that later
// failed.
func (e *Engine) discardParticipant(ctx context.Context, poolID uint64, account domain.Address) {
	if err := e.participants.Delete(ctx, poolID, account); err != nil {
		e.logger.ErrorContext(ctx, "participant unwind failed",
			slog.Uint64("pool_id", poolID),
			slog.String("account", account.Hex()),
			slog.String("error", err.Error()),
		)
	}
}

// restorePool rewrites a pool to its pre-operation snapshot.
func (e *Engine) restorePool(ctx context.Context, snapshot *domain.Pool) {
	if err := e.pools.Update(ctx, snapshot); err != nil {
		e.logger.ErrorContext(ctx, "pool restore failed",
			slog.Uint64("pool_id", snapshot.ID),
			slog.String("error", err.Error()),
		)
	}
}
