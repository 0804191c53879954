package engine

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

func TestDefaultParamsValidWithRecipient(t *testing.T) {
	p := DefaultParams()
	require.Error(t, p.Validate()) // fee recipient unset

	p.FeeRecipient = feeSink
	require.NoError(t, p.Validate())
	require.Equal(t, uint32(50), p.CreateFeeBps)
	require.Equal(t, uint32(30), p.JoinFeeBps)
	require.Equal(t, uint32(3), p.MaxStaleRetries)
	require.Equal(t, time.Hour, p.StaleExtensionPeriod)
}

func TestParamsValidateCollectsProblems(t *testing.T) {
	p := Params{
		CreateFeeBps:      10_000,
		JoinPeriod:        -time.Second,
		MinMaturityPeriod: time.Hour,
		MaxMaturityPeriod: time.Minute,
		MinStake:          big.NewInt(0),
	}
	err := p.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"create_fee_bps",
		"join_period",
		"max_maturity_period",
		"max_events_per_pool",
		"max_options_per_pool",
		"min_stake",
		"stale_extension_period",
		"fee_recipient",
	} {
		require.ErrorContains(t, err, want)
	}
}

func TestMaxPlayersPerMode(t *testing.T) {
	p := testParams()
	require.Equal(t, p.MaxPlayersPerPool, p.maxPlayers(domain.PoolModeEventGate))
	require.Equal(t, p.MaxPollPlayersPerPool, p.maxPlayers(domain.PoolModePoll))
}
