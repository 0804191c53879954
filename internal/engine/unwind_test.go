package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// errStoreDown simulates a durable-store outage mid-operation.
var errStoreDown = errors.New("store down")

type flakyPoolStore struct {
	domain.PoolStore
	failCreate bool
	failUpdate bool
}

func (s *flakyPoolStore) Create(ctx context.Context, p *domain.Pool) error {
	if s.failCreate {
		return errStoreDown
	}
	return s.PoolStore.Create(ctx, p)
}

func (s *flakyPoolStore) Update(ctx context.Context, p *domain.Pool) error {
	if s.failUpdate {
		return errStoreDown
	}
	return s.PoolStore.Update(ctx, p)
}

type flakyParticipantStore struct {
	domain.ParticipantStore
	failCreate bool
}

func (s *flakyParticipantStore) Create(ctx context.Context, p *domain.Participant) error {
	if s.failCreate {
		return errStoreDown
	}
	return s.ParticipantStore.Create(ctx, p)
}

// flakyEngine rebuilds the fixture's engine over wrapped stores so a test can
// inject failures on the durable path.
func flakyEngine(t *testing.T, f *fixture, pools domain.PoolStore, parts domain.ParticipantStore) *Engine {
	t.Helper()
	eng, err := New(context.Background(), f.params, Deps{
		Pools:        pools,
		Participants: parts,
		Withdrawals:  f.withdrawals,
		Topics:       f.reg,
		Custody:      f.bank,
		Logger:       slog.New(slog.DiscardHandler),
	}, WithClock(f.clock.Now))
	require.NoError(t, err)
	return eng
}

func TestJoinPoolUpdateFailureRetainsNothing(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)

	bobBefore := f.bank.BalanceOf(bob)
	escrowBefore := f.bank.EscrowBalance()
	feeBefore := f.bank.BalanceOf(feeSink)

	eng := flakyEngine(t, f, &flakyPoolStore{PoolStore: f.pools, failUpdate: true}, f.parts)
	err := eng.JoinPool(context.Background(), bob, id, domain.SideNo, big.NewInt(10_000))
	require.ErrorIs(t, err, errStoreDown)

	// The debit came back, the fee never left escrow, and neither store
	// retains a trace of the join.
	require.Zero(t, f.bank.BalanceOf(bob).Cmp(bobBefore))
	require.Zero(t, f.bank.EscrowBalance().Cmp(escrowBefore))
	require.Zero(t, f.bank.BalanceOf(feeSink).Cmp(feeBefore))

	_, err = f.parts.Get(context.Background(), id, bob)
	require.ErrorIs(t, err, domain.ErrNotFound)

	pool, err := f.pools.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, pool.PlayerCount)
	require.Zero(t, pool.SideStake(domain.SideNo).Sign())
	f.conservation(t, id)
}

func TestJoinPoolParticipantFailureRefundsStake(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)

	bobBefore := f.bank.BalanceOf(bob)
	escrowBefore := f.bank.EscrowBalance()

	eng := flakyEngine(t, f, f.pools, &flakyParticipantStore{ParticipantStore: f.parts, failCreate: true})
	err := eng.JoinPool(context.Background(), bob, id, domain.SideNo, big.NewInt(10_000))
	require.ErrorIs(t, err, errStoreDown)

	require.Zero(t, f.bank.BalanceOf(bob).Cmp(bobBefore))
	require.Zero(t, f.bank.EscrowBalance().Cmp(escrowBefore))

	pool, err := f.pools.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, pool.PlayerCount)
	f.conservation(t, id)

	// A retry against the healthy stores succeeds.
	require.NoError(t, f.eng.JoinPool(context.Background(), bob, id, domain.SideNo, big.NewInt(10_000)))
	f.conservation(t, id)
}

func TestCreatePoolStoreFailureRefundsStake(t *testing.T) {
	f := newFixture(t, testParams())

	aliceBefore := f.bank.BalanceOf(alice)

	eng := flakyEngine(t, f, &flakyPoolStore{PoolStore: f.pools, failCreate: true}, f.parts)
	_, err := eng.CreatePool(context.Background(), alice,
		[][]byte{[]byte("statement:rain-tomorrow")},
		[]time.Time{f.clock.Now().Add(2 * time.Hour)},
		[]uint64{f.topicID},
		domain.SideYes, big.NewInt(10_000))
	require.ErrorIs(t, err, errStoreDown)

	require.Zero(t, f.bank.BalanceOf(alice).Cmp(aliceBefore))
	require.Zero(t, f.bank.EscrowBalance().Sign())

	_, err = f.pools.Get(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrPoolNotFound)
}

func TestCreatePoolParticipantFailureUnwindsPool(t *testing.T) {
	f := newFixture(t, testParams())

	aliceBefore := f.bank.BalanceOf(alice)
	feeBefore := f.bank.BalanceOf(feeSink)

	eng := flakyEngine(t, f, f.pools, &flakyParticipantStore{ParticipantStore: f.parts, failCreate: true})
	_, err := eng.CreatePool(context.Background(), alice,
		[][]byte{[]byte("statement:rain-tomorrow")},
		[]time.Time{f.clock.Now().Add(2 * time.Hour)},
		[]uint64{f.topicID},
		domain.SideYes, big.NewInt(10_000))
	require.ErrorIs(t, err, errStoreDown)

	// The half-written pool row is removed and all value returns to alice.
	_, err = f.pools.Get(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrPoolNotFound)
	require.Zero(t, f.bank.BalanceOf(alice).Cmp(aliceBefore))
	require.Zero(t, f.bank.BalanceOf(feeSink).Cmp(feeBefore))
	require.Zero(t, f.bank.EscrowBalance().Sign())

	// The healthy path still opens pool 1 afterwards.
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	require.Equal(t, uint64(1), id)
	f.conservation(t, id)
}
