package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/oracle"
)

func TestCloseResolvesPool(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	require.NoError(t, f.eng.JoinPool(ctx, bob, id, domain.SideNo, big.NewInt(10_000)))

	f.provide(t, domain.SideYes)
	require.NoError(t, f.matureAndClose(t, id))

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolResolved, pool.Phase)
	require.Equal(t, domain.SideYes, pool.Result)
	require.True(t, pool.Phase.Terminal())

	resolved := f.sink.ofType(domain.EventPoolResolved)
	require.Len(t, resolved, 1)
	require.Equal(t, domain.SideYes, resolved[0].Result)

	// Terminal: a second close is rejected.
	err = f.eng.Close(ctx, dave, id)
	require.ErrorIs(t, err, domain.ErrActionNotAllowed)
	var stateErr *domain.StateError
	require.True(t, errors.As(err, &stateErr))
	require.Equal(t, domain.PoolResolved, stateErr.State)
}

func TestCloseBeforeMaturity(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	f.provide(t, domain.SideYes)

	err := f.eng.Close(ctx, dave, id)
	require.ErrorIs(t, err, domain.ErrActionNotAllowed)

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolOpen, pool.Phase)
}

func TestCloseMultiEventAND(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	maturity := f.clock.Now().Add(2 * time.Hour)
	paramA := []byte("statement:rain-tomorrow")
	paramB := []byte("statement:heatwave-tomorrow")

	id, err := f.eng.CreatePool(ctx, alice,
		[][]byte{paramA, paramB},
		[]time.Time{maturity, maturity},
		[]uint64{f.topicID, f.topicID},
		domain.SideYes, big.NewInt(10_000))
	require.NoError(t, err)

	require.NoError(t, f.provider.Provide(ctx, reporter, oracle.DataKey(paramA), []byte(domain.SideYes)))
	require.NoError(t, f.provider.Provide(ctx, reporter, oracle.DataKey(paramB), []byte(domain.SideNo)))

	require.NoError(t, f.matureAndClose(t, id))
	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	// One "no" event flips the whole gate to "no".
	require.Equal(t, domain.SideNo, pool.Result)
}

func TestCloseStaleRetriesThenManual(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	require.NoError(t, f.eng.JoinPool(ctx, bob, id, domain.SideNo, big.NewInt(10_000)))
	f.clock.Advance(3 * time.Hour)

	// No oracle data: each attempt records a stale retry with a cooldown.
	for want := uint32(1); want <= f.params.MaxStaleRetries; want++ {
		require.NoError(t, f.eng.Close(ctx, dave, id))
		pool, err := f.eng.GetPool(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.PoolStale, pool.Phase)
		require.Equal(t, want, pool.StaleRetries)
		require.True(t, pool.NextRetryAt.Equal(f.clock.Now().Add(f.params.StaleExtensionPeriod)))

		// Inside the cooldown the attempt is rejected with the deadline.
		err = f.eng.Close(ctx, dave, id)
		require.ErrorIs(t, err, domain.ErrRetryNotReached)
		var retryErr *domain.RetryError
		require.True(t, errors.As(err, &retryErr))
		require.Equal(t, want, retryErr.Retries)
		require.True(t, retryErr.NextRetryAt.After(f.clock.Now()))

		f.clock.Advance(f.params.StaleExtensionPeriod)
	}
	require.Len(t, f.sink.ofType(domain.EventPoolStale), int(f.params.MaxStaleRetries))

	// Budget exhausted: the next eligible attempt freezes the pool.
	require.NoError(t, f.eng.Close(ctx, dave, id))
	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolManual, pool.Phase)
	require.Len(t, f.sink.ofType(domain.EventManualResolution), 1)

	// Frozen pools reject further closes, even with data available now.
	f.provide(t, domain.SideYes)
	require.ErrorIs(t, f.eng.Close(ctx, dave, id), domain.ErrActionNotAllowed)
}

func TestCloseRecoversWhenDataArrives(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	f.clock.Advance(3 * time.Hour)

	require.NoError(t, f.eng.Close(ctx, dave, id)) // stale, retry 1
	f.clock.Advance(f.params.StaleExtensionPeriod)

	f.provide(t, domain.SideNo)
	require.NoError(t, f.eng.Close(ctx, dave, id))

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolResolved, pool.Phase)
	require.Equal(t, domain.SideNo, pool.Result)
	require.Equal(t, uint32(1), pool.StaleRetries)
}

func TestClosePollUnknownOptionGoesStale(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	param := []byte("statement:london-derby")

	id, err := f.eng.CreatePoll(ctx, alice, param, f.topicID,
		f.clock.Now().Add(2*time.Hour),
		[]string{"arsenal", "chelsea"}, "arsenal", 1, big.NewInt(1_000))
	require.NoError(t, err)

	// Reported value names no declared option: unusable, treated as no data.
	require.NoError(t, f.provider.Provide(ctx, reporter, oracle.DataKey(param), []byte("spurs")))
	require.NoError(t, f.matureAndClose(t, id))

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolStale, pool.Phase)
}

func TestCloseGateNonBooleanGoesStale(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)

	f.provide(t, "4-2")
	require.NoError(t, f.matureAndClose(t, id))

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolStale, pool.Phase)
}

func TestSetManualResult(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	require.NoError(t, f.eng.JoinPool(ctx, bob, id, domain.SideNo, big.NewInt(10_000)))

	// Not frozen yet: the override is premature even for the owner.
	require.ErrorIs(t, f.eng.SetManualResult(ctx, owner, id, domain.SideYes), domain.ErrActionNotAllowed)

	// Exhaust the retry budget to reach manual resolution.
	f.clock.Advance(3 * time.Hour)
	for range f.params.MaxStaleRetries {
		require.NoError(t, f.eng.Close(ctx, dave, id))
		f.clock.Advance(f.params.StaleExtensionPeriod)
	}
	require.NoError(t, f.eng.Close(ctx, dave, id))

	require.ErrorIs(t, f.eng.SetManualResult(ctx, alice, id, domain.SideYes), domain.ErrUnauthorized)
	require.ErrorIs(t, f.eng.SetManualResult(ctx, owner, id, "maybe"), domain.ErrInvalidPrediction)

	require.NoError(t, f.eng.SetManualResult(ctx, owner, id, domain.SideNo))
	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolResolved, pool.Phase)
	require.Equal(t, domain.SideNo, pool.Result)

	// Settlement works after the override.
	rec, err := f.eng.Withdraw(ctx, bob, id)
	require.NoError(t, err)
	require.Equal(t, int64(9_970+9_950), rec.Payout.Int64())
}

func TestCloseMany(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	a := f.createGatePool(t, alice, domain.SideYes, 10_000)
	b := f.createGatePool(t, bob, domain.SideNo, 10_000)

	f.provide(t, domain.SideYes)
	f.clock.Advance(3 * time.Hour)

	results := f.eng.CloseMany(ctx, dave, []uint64{a, 999, b})
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, domain.ErrPoolNotFound)
	require.NoError(t, results[2].Err)

	for _, id := range []uint64{a, b} {
		pool, err := f.eng.GetPool(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.PoolResolved, pool.Phase)
	}
}
