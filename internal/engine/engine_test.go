package engine

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/custody"
	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/oracle"
	"github.com/Hurisoft/soccersm-pools/internal/registry"
	"github.com/Hurisoft/soccersm-pools/internal/store/memory"
)

// fakeClock is a mutable time source stepped explicitly by tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// captureSink records every emitted lifecycle event.
type captureSink struct {
	mu     sync.Mutex
	events []domain.PoolEvent
}

func (s *captureSink) Emit(_ context.Context, ev domain.PoolEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) ofType(t domain.EventType) []domain.PoolEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PoolEvent
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// addr builds a deterministic test address.
func addr(b byte) domain.Address {
	var a domain.Address
	a[len(a)-1] = b
	return a
}

var (
	owner    = addr(0x01)
	feeSink  = addr(0x02)
	reporter = addr(0x03)
	alice    = addr(0x0a)
	bob      = addr(0x0b)
	carol    = addr(0x0c)
	dave     = addr(0x0d)
)

// fixture wires an engine against in-memory collaborators.
type fixture struct {
	eng         *Engine
	bank        *custody.Bank
	provider    *oracle.MemoryProvider
	reg         *registry.Registry
	pools       *memory.PoolStore
	parts       *memory.ParticipantStore
	withdrawals *memory.WithdrawalStore
	clock       *fakeClock
	sink        *captureSink
	params      Params
	topicID     uint64
}

func testParams() Params {
	p := DefaultParams()
	p.MinStake = big.NewInt(100)
	p.MaxPlayersPerPool = 4
	p.Owner = owner
	p.FeeRecipient = feeSink
	return p
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	provider := oracle.NewMemoryProvider(owner, logger)
	require.NoError(t, provider.AddReporter(ctx, owner, reporter))

	reg, err := registry.New(ctx, owner, memory.NewTopicStore(), logger)
	require.NoError(t, err)
	reg.RegisterEvaluator("statement", oracle.NewStatementEvaluator(provider))
	topic, err := reg.CreateTopic(ctx, owner, "General statements", "settles yes/no statements", "statement")
	require.NoError(t, err)

	bank := custody.NewBank()
	for _, a := range []domain.Address{alice, bob, carol, dave} {
		bank.Mint(a, big.NewInt(1_000_000))
		bank.Approve(a, big.NewInt(1_000_000))
	}

	f := &fixture{
		bank:        bank,
		provider:    provider,
		reg:         reg,
		pools:       memory.NewPoolStore(),
		parts:       memory.NewParticipantStore(),
		withdrawals: memory.NewWithdrawalStore(),
		clock:       newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		sink:        &captureSink{},
		params:      params,
		topicID:     topic.ID,
	}
	f.eng, err = New(ctx, params, Deps{
		Pools:        f.pools,
		Participants: f.parts,
		Withdrawals:  f.withdrawals,
		Topics:       reg,
		Custody:      bank,
		Sink:         f.sink,
		Logger:       logger,
	}, WithClock(f.clock.Now))
	require.NoError(t, err)
	return f
}

// createGatePool opens a single-event yes/no pool maturing two hours out.
func (f *fixture) createGatePool(t *testing.T, creator domain.Address, prediction string, stake int64) uint64 {
	t.Helper()
	id, err := f.eng.CreatePool(context.Background(), creator,
		[][]byte{[]byte("statement:rain-tomorrow")},
		[]time.Time{f.clock.Now().Add(2 * time.Hour)},
		[]uint64{f.topicID},
		prediction, big.NewInt(stake))
	require.NoError(t, err)
	return id
}

// provide reports an outcome for the default gate statement.
func (f *fixture) provide(t *testing.T, value string) {
	t.Helper()
	key := oracle.DataKey([]byte("statement:rain-tomorrow"))
	require.NoError(t, f.provider.Provide(context.Background(), reporter, key, []byte(value)))
}

// matureAndClose advances past maturity and closes the pool.
func (f *fixture) matureAndClose(t *testing.T, poolID uint64) error {
	t.Helper()
	f.clock.Advance(3 * time.Hour)
	return f.eng.Close(context.Background(), dave, poolID)
}

// conservation asserts the pool's per-side totals equal the sum of its
// participants' net stakes, and that escrow covers that sum.
func (f *fixture) conservation(t *testing.T, poolID uint64) {
	t.Helper()
	ctx := context.Background()
	pool, err := f.eng.GetPool(ctx, poolID)
	require.NoError(t, err)
	entries, err := f.eng.ListParticipants(ctx, poolID, domain.ListOpts{})
	require.NoError(t, err)

	bySide := make(map[string]*big.Int)
	for _, p := range entries {
		if bySide[p.Prediction] == nil {
			bySide[p.Prediction] = new(big.Int)
		}
		bySide[p.Prediction].Add(bySide[p.Prediction], p.NetStake)
	}
	require.Len(t, pool.StakeBySide, len(bySide))
	for side, want := range bySide {
		require.Zero(t, want.Cmp(pool.SideStake(side)), "side %q stake mismatch", side)
	}
	require.True(t, f.bank.EscrowBalance().Cmp(pool.TotalStaked()) >= 0,
		"escrow below pool total")
}

func TestNewRecoversIDSequence(t *testing.T) {
	f := newFixture(t, testParams())
	first := f.createGatePool(t, alice, domain.SideYes, 10_000)
	require.Equal(t, uint64(1), first)

	// A second engine over the same stores continues the sequence.
	eng2, err := New(context.Background(), f.params, Deps{
		Pools:        f.pools,
		Participants: f.parts,
		Withdrawals:  f.withdrawals,
		Topics:       f.reg,
		Custody:      f.bank,
		Logger:       slog.New(slog.DiscardHandler),
	}, WithClock(f.clock.Now))
	require.NoError(t, err)

	id, err := eng2.CreatePool(context.Background(), bob,
		[][]byte{[]byte("statement:rain-tomorrow")},
		[]time.Time{f.clock.Now().Add(2 * time.Hour)},
		[]uint64{f.topicID},
		domain.SideNo, big.NewInt(10_000))
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
}

func TestNewRejectsMissingDeps(t *testing.T) {
	_, err := New(context.Background(), testParams(), Deps{})
	require.Error(t, err)
}

func TestIsWinner(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	require.NoError(t, f.eng.JoinPool(context.Background(), bob, id, domain.SideNo, big.NewInt(10_000)))

	_, err := f.eng.IsWinner(context.Background(), id, alice)
	require.ErrorIs(t, err, domain.ErrActionNotAllowed)

	f.provide(t, domain.SideYes)
	require.NoError(t, f.matureAndClose(t, id))

	won, err := f.eng.IsWinner(context.Background(), id, alice)
	require.NoError(t, err)
	require.True(t, won)
	won, err = f.eng.IsWinner(context.Background(), id, bob)
	require.NoError(t, err)
	require.False(t, won)
}
