package app

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/config"
	"github.com/Hurisoft/soccersm-pools/internal/custody"
	"github.com/Hurisoft/soccersm-pools/internal/oracle"
	"github.com/Hurisoft/soccersm-pools/internal/store/memory"
)

func standaloneConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Mode = "standalone"
	cfg.Engine.Owner = "0x0000000000000000000000000000000000000001"
	cfg.Engine.FeeRecipient = "0x00000000000000000000000000000000000000fe"
	cfg.Oracle.Reporters = []string{"0x0000000000000000000000000000000000000002"}
	return &cfg
}

func TestWireStandalone(t *testing.T) {
	cfg := standaloneConfig()
	require.NoError(t, cfg.Validate())

	deps, cleanup, err := Wire(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.PoolStore{}, deps.PoolStore)
	assert.IsType(t, &custody.Bank{}, deps.Custody)
	assert.IsType(t, &oracle.MemoryProvider{}, deps.Provider)
	assert.Nil(t, deps.PoolCache)
	assert.Nil(t, deps.SignalBus)
	assert.NotNil(t, deps.Notifier)

	// Configured reporters can provide data right away.
	reporter := common.HexToAddress(cfg.Oracle.Reporters[0])
	require.NoError(t, deps.Provider.Provide(context.Background(), reporter, "k", []byte("yes")))
}

func TestEngineParamsConversion(t *testing.T) {
	cfg := standaloneConfig()

	params, err := EngineParams(cfg)
	require.NoError(t, err)

	assert.Equal(t, uint32(50), params.CreateFeeBps)
	assert.Equal(t, uint32(30), params.JoinFeeBps)
	assert.Equal(t, 10_000*time.Second, params.JoinPeriod)
	assert.Equal(t, "100000000000000000000", params.MinStake.String())
	assert.Equal(t, common.HexToAddress(cfg.Engine.FeeRecipient), params.FeeRecipient)
	assert.Equal(t, common.HexToAddress(cfg.Engine.Owner), params.Owner)
}

func TestEngineParamsRejectsBadMinStake(t *testing.T) {
	cfg := standaloneConfig()
	cfg.Engine.MinStake = "not-a-number"

	_, err := EngineParams(cfg)
	require.Error(t, err)
}
