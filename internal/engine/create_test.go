package engine

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

func TestCreatePool(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()

	id := f.createGatePool(t, alice, domain.SideYes, 10_000)
	require.Equal(t, uint64(1), id)

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolModeEventGate, pool.Mode)
	require.Equal(t, alice, pool.Creator)
	require.Equal(t, domain.PoolOpen, pool.Phase)
	require.Equal(t, 1, pool.PlayerCount)

	// Create fee is 50 bps: 10000 -> 9950 net, 50 fee.
	require.Equal(t, int64(9_950), pool.SideStake(domain.SideYes).Int64())
	require.Equal(t, int64(9_950), f.bank.EscrowBalance().Int64())
	require.Equal(t, int64(50), f.bank.BalanceOf(feeSink).Int64())
	require.Equal(t, int64(1_000_000-10_000), f.bank.BalanceOf(alice).Int64())

	entry, err := f.eng.GetParticipant(ctx, id, alice)
	require.NoError(t, err)
	require.Equal(t, domain.SideYes, entry.Prediction)
	require.Equal(t, int64(9_950), entry.NetStake.Int64())
	require.Equal(t, int64(50), entry.FeePaid.Int64())
	require.False(t, entry.Withdrawn)

	created := f.sink.ofType(domain.EventNewPool)
	require.Len(t, created, 1)
	require.Equal(t, id, created[0].PoolID)
	f.conservation(t, id)
}

func TestCreatePoolJoinDeadlineCappedByMaturity(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()

	// Maturity 90m out, join period 10000s (~167m): deadline is the maturity.
	maturity := f.clock.Now().Add(90 * time.Minute)
	id, err := f.eng.CreatePool(ctx, alice,
		[][]byte{[]byte("statement:rain-tomorrow")},
		[]time.Time{maturity},
		[]uint64{f.topicID},
		domain.SideYes, big.NewInt(10_000))
	require.NoError(t, err)

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.True(t, pool.JoinDeadline.Equal(maturity))
}

func TestCreatePoolValidation(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	now := f.clock.Now()
	goodParams := [][]byte{[]byte("statement:rain-tomorrow")}
	goodMaturity := []time.Time{now.Add(2 * time.Hour)}
	goodTopics := []uint64{f.topicID}
	stake := big.NewInt(10_000)

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"no events", func() error {
			_, err := f.eng.CreatePool(ctx, alice, nil, nil, nil, domain.SideYes, stake)
			return err
		}, domain.ErrInvalidEventCount},
		{"too many events", func() error {
			params := make([][]byte, f.params.MaxEventsPerPool+1)
			maturities := make([]time.Time, len(params))
			topics := make([]uint64, len(params))
			for i := range params {
				params[i] = []byte("statement:rain-tomorrow")
				maturities[i] = now.Add(2 * time.Hour)
				topics[i] = f.topicID
			}
			_, err := f.eng.CreatePool(ctx, alice, params, maturities, topics, domain.SideYes, stake)
			return err
		}, domain.ErrInvalidEventCount},
		{"length mismatch", func() error {
			_, err := f.eng.CreatePool(ctx, alice, goodParams, nil, goodTopics, domain.SideYes, stake)
			return err
		}, domain.ErrLengthMismatch},
		{"bad prediction", func() error {
			_, err := f.eng.CreatePool(ctx, alice, goodParams, goodMaturity, goodTopics, "maybe", stake)
			return err
		}, domain.ErrInvalidPrediction},
		{"maturity too soon", func() error {
			_, err := f.eng.CreatePool(ctx, alice, goodParams,
				[]time.Time{now.Add(30 * time.Minute)}, goodTopics, domain.SideYes, stake)
			return err
		}, domain.ErrMaturityOutOfBounds},
		{"maturity too late", func() error {
			_, err := f.eng.CreatePool(ctx, alice, goodParams,
				[]time.Time{now.Add(f.params.MaxMaturityPeriod + time.Hour)}, goodTopics, domain.SideYes, stake)
			return err
		}, domain.ErrMaturityOutOfBounds},
		{"unknown topic", func() error {
			_, err := f.eng.CreatePool(ctx, alice, goodParams, goodMaturity, []uint64{999}, domain.SideYes, stake)
			return err
		}, domain.ErrTopicNotFound},
		{"empty event params", func() error {
			_, err := f.eng.CreatePool(ctx, alice, [][]byte{nil}, goodMaturity, goodTopics, domain.SideYes, stake)
			return err
		}, domain.ErrInvalidEventParam},
		{"stake below minimum", func() error {
			_, err := f.eng.CreatePool(ctx, alice, goodParams, goodMaturity, goodTopics, domain.SideYes, big.NewInt(99))
			return err
		}, domain.ErrStakeTooSmall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.call(), tc.want)
		})
	}

	// Nothing persisted, nothing moved.
	pools, err := f.eng.ListPools(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, pools)
	require.Zero(t, f.bank.EscrowBalance().Sign())
}

func TestCreatePoolDisabledTopic(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	require.NoError(t, f.reg.SetTopicEnabled(ctx, owner, f.topicID, false))

	_, err := f.eng.CreatePool(ctx, alice,
		[][]byte{[]byte("statement:rain-tomorrow")},
		[]time.Time{f.clock.Now().Add(2 * time.Hour)},
		[]uint64{f.topicID},
		domain.SideYes, big.NewInt(10_000))
	require.ErrorIs(t, err, domain.ErrTopicDisabled)
}

func TestCreatePoolInsufficientAllowance(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()

	broke := addr(0xee)
	f.bank.Mint(broke, big.NewInt(1_000_000)) // funded but never approved

	_, err := f.eng.CreatePool(ctx, broke,
		[][]byte{[]byte("statement:rain-tomorrow")},
		[]time.Time{f.clock.Now().Add(2 * time.Hour)},
		[]uint64{f.topicID},
		domain.SideYes, big.NewInt(10_000))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	require.Equal(t, int64(1_000_000), f.bank.BalanceOf(broke).Int64())
	require.Zero(t, f.bank.EscrowBalance().Sign())
	pools, err := f.eng.ListPools(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, pools)
}

func TestCreatePoll(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	options := []string{"arsenal", "chelsea", "draw"}

	id, err := f.eng.CreatePoll(ctx, alice,
		[]byte("statement:london-derby"), f.topicID,
		f.clock.Now().Add(2*time.Hour),
		options, "arsenal", 3, big.NewInt(1_000))
	require.NoError(t, err)

	pool, err := f.eng.GetPool(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PoolModePoll, pool.Mode)
	require.Equal(t, options, pool.Options)
	require.Equal(t, int64(1_000), pool.TicketPrice.Int64())

	// 3 tickets x 1000 = 3000 gross; 50 bps create fee -> 2985 net, 15 fee.
	require.Equal(t, int64(2_985), pool.SideStake("arsenal").Int64())
	require.Equal(t, int64(15), f.bank.BalanceOf(feeSink).Int64())

	entry, err := f.eng.GetParticipant(ctx, id, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(3), entry.Tickets)
	f.conservation(t, id)
}

func TestCreatePollValidation(t *testing.T) {
	f := newFixture(t, testParams())
	ctx := context.Background()
	maturity := f.clock.Now().Add(2 * time.Hour)
	param := []byte("statement:london-derby")

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"one option", func() error {
			_, err := f.eng.CreatePoll(ctx, alice, param, f.topicID, maturity,
				[]string{"arsenal"}, "arsenal", 1, big.NewInt(1_000))
			return err
		}, domain.ErrInvalidOptions},
		{"empty option", func() error {
			_, err := f.eng.CreatePoll(ctx, alice, param, f.topicID, maturity,
				[]string{"arsenal", ""}, "arsenal", 1, big.NewInt(1_000))
			return err
		}, domain.ErrInvalidOptions},
		{"duplicate option", func() error {
			_, err := f.eng.CreatePoll(ctx, alice, param, f.topicID, maturity,
				[]string{"arsenal", "arsenal"}, "arsenal", 1, big.NewInt(1_000))
			return err
		}, domain.ErrInvalidOptions},
		{"prediction not an option", func() error {
			_, err := f.eng.CreatePoll(ctx, alice, param, f.topicID, maturity,
				[]string{"arsenal", "chelsea"}, "spurs", 1, big.NewInt(1_000))
			return err
		}, domain.ErrInvalidPrediction},
		{"zero tickets", func() error {
			_, err := f.eng.CreatePoll(ctx, alice, param, f.topicID, maturity,
				[]string{"arsenal", "chelsea"}, "arsenal", 0, big.NewInt(1_000))
			return err
		}, domain.ErrStakeTooSmall},
		{"ticket price below minimum", func() error {
			_, err := f.eng.CreatePoll(ctx, alice, param, f.topicID, maturity,
				[]string{"arsenal", "chelsea"}, "arsenal", 1, big.NewInt(99))
			return err
		}, domain.ErrStakeTooSmall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.call(), tc.want)
		})
	}
}
