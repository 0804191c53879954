package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

func TestJoinPool(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)

	require.NoError(t, f.eng.JoinPool(ctx, bob, id, domain.SideNo, big.NewInt(20_000)))

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, pool.PlayerCount)
	// Join fee is 30 bps: 20000 -> 19940 net, 60 fee.
	require.Equal(t, int64(19_940), pool.SideStake(domain.SideNo).Int64())
	require.Equal(t, int64(9_950), pool.SideStake(domain.SideYes).Int64())
	require.Equal(t, int64(50+60), f.bank.BalanceOf(feeSink).Int64())

	joined := f.sink.ofType(domain.EventPoolJoined)
	require.Len(t, joined, 1)
	require.Equal(t, bob.Hex(), joined[0].Actor)
	f.conservation(t, id)
}

func TestJoinPoolSameSideAccumulates(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)

	require.NoError(t, f.eng.JoinPool(ctx, bob, id, domain.SideYes, big.NewInt(10_000)))
	require.NoError(t, f.eng.JoinPool(ctx, carol, id, domain.SideYes, big.NewInt(10_000)))

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(9_950+9_970+9_970), pool.SideStake(domain.SideYes).Int64())
	f.conservation(t, id)
}

func TestJoinPoolRejections(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	stake := big.NewInt(10_000)

	require.ErrorIs(t, f.eng.JoinPool(ctx, bob, 999, domain.SideNo, stake), domain.ErrPoolNotFound)
	require.ErrorIs(t, f.eng.JoinPool(ctx, bob, id, "maybe", stake), domain.ErrInvalidPrediction)
	require.ErrorIs(t, f.eng.JoinPool(ctx, bob, id, domain.SideNo, big.NewInt(99)), domain.ErrStakeTooSmall)
	require.ErrorIs(t, f.eng.JoinPoll(ctx, bob, id, domain.SideNo, 1), domain.ErrWrongPoolMode)
	require.ErrorIs(t, f.eng.JoinPool(ctx, alice, id, domain.SideNo, stake), domain.ErrPlayerAlreadyInPool)

	// Unapproved account: rejected with nothing persisted.
	broke := addr(0xee)
	f.bank.Mint(broke, big.NewInt(1_000_000))
	require.ErrorIs(t, f.eng.JoinPool(ctx, broke, id, domain.SideNo, stake), domain.ErrInsufficientFunds)
	_, err := f.eng.GetParticipant(ctx, id, broke)
	require.ErrorIs(t, err, domain.ErrNotFound)

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, pool.PlayerCount)
}

func TestJoinPoolAfterDeadline(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()

	// Maturity 4h out so the join deadline (10000s) falls before it.
	id, err := f.eng.CreatePool(ctx, alice,
		[][]byte{[]byte("statement:rain-tomorrow")},
		[]time.Time{f.clock.Now().Add(4 * time.Hour)},
		[]uint64{f.topicID},
		domain.SideYes, big.NewInt(10_000))
	require.NoError(t, err)

	f.clock.Advance(f.params.JoinPeriod + time.Second)
	err = f.eng.JoinPool(ctx, bob, id, domain.SideNo, big.NewInt(10_000))
	require.ErrorIs(t, err, domain.ErrActionNotAllowed)

	var stateErr *domain.StateError
	require.True(t, errors.As(err, &stateErr))
	require.Equal(t, domain.PoolClosedForJoin, stateErr.State)
}

func TestJoinPoolAfterMaturity(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)

	f.clock.Advance(3 * time.Hour)
	err := f.eng.JoinPool(ctx, bob, id, domain.SideNo, big.NewInt(10_000))
	require.ErrorIs(t, err, domain.ErrActionNotAllowed)

	var stateErr *domain.StateError
	require.True(t, errors.As(err, &stateErr))
	require.Equal(t, domain.PoolAwaitingResolution, stateErr.State)
}

func TestJoinPoolPlayerCap(t *testing.T) {
	params := testParams()
	params.MaxPlayersPerPool = 2
	f := newFixture(t, params)
	ctx := context.Background()

	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	require.NoError(t, f.eng.JoinPool(ctx, bob, id, domain.SideNo, big.NewInt(10_000)))
	require.ErrorIs(t, f.eng.JoinPool(ctx, carol, id, domain.SideNo, big.NewInt(10_000)), domain.ErrPoolFull)
}

func TestJoinPoll(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()

	id, err := f.eng.CreatePoll(ctx, alice,
		[]byte("statement:london-derby"), f.topicID,
		f.clock.Now().Add(2*time.Hour),
		[]string{"arsenal", "chelsea", "draw"}, "arsenal", 1, big.NewInt(1_000))
	require.NoError(t, err)

	// 5 tickets x 1000 = 5000 gross; 30 bps join fee -> 4985 net, 15 fee.
	require.NoError(t, f.eng.JoinPoll(ctx, bob, id, "chelsea", 5))

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(4_985), pool.SideStake("chelsea").Int64())

	entry, err := f.eng.GetParticipant(ctx, id, bob)
	require.NoError(t, err)
	require.Equal(t, uint64(5), entry.Tickets)
	require.Equal(t, int64(4_985), entry.NetStake.Int64())

	require.ErrorIs(t, f.eng.JoinPoll(ctx, carol, id, "spurs", 1), domain.ErrInvalidPrediction)
	require.ErrorIs(t, f.eng.JoinPoll(ctx, carol, id, "draw", 0), domain.ErrStakeTooSmall)
	require.ErrorIs(t, f.eng.JoinPool(ctx, carol, id, "draw", big.NewInt(1_000)), domain.ErrWrongPoolMode)
	f.conservation(t, id)
}
