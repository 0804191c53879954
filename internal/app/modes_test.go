package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/custody"
	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/engine"
	"github.com/Hurisoft/soccersm-pools/internal/oracle"
	"github.com/Hurisoft/soccersm-pools/internal/registry"
	"github.com/Hurisoft/soccersm-pools/internal/service"
	"github.com/Hurisoft/soccersm-pools/internal/store/memory"
)

// TestCollectDuePoolsPagesThroughAllPools seeds more matured pools than one
// sweep page holds and checks the sweeper scan still finds every one.
func TestCollectDuePoolsPagesThroughAllPools(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	owner := common.HexToAddress("0x0000000000000000000000000000000000000001")
	creator := common.HexToAddress("0x000000000000000000000000000000000000000a")

	provider := oracle.NewMemoryProvider(owner, logger)
	reg, err := registry.New(ctx, owner, memory.NewTopicStore(), logger)
	require.NoError(t, err)
	reg.RegisterEvaluator("statement", oracle.NewStatementEvaluator(provider))
	topic, err := reg.CreateTopic(ctx, owner, "General statements", "settles yes/no statements", "statement")
	require.NoError(t, err)

	total := sweepBatchSize + 5
	bank := custody.NewBank()
	funds := new(big.Int).Mul(big.NewInt(int64(total)), big.NewInt(10_000))
	bank.Mint(creator, funds)
	bank.Approve(creator, funds)

	params := engine.DefaultParams()
	params.MinStake = big.NewInt(100)
	params.Owner = owner
	params.FeeRecipient = common.HexToAddress("0x00000000000000000000000000000000000000fe")

	eng, err := engine.New(ctx, params, engine.Deps{
		Pools:        memory.NewPoolStore(),
		Participants: memory.NewParticipantStore(),
		Withdrawals:  memory.NewWithdrawalStore(),
		Topics:       reg,
		Custody:      bank,
		Logger:       logger,
	})
	require.NoError(t, err)
	svc := service.NewPoolService(eng, nil, nil, logger)

	maturity := time.Now().Add(2 * time.Hour)
	for i := 0; i < total; i++ {
		_, err := eng.CreatePool(ctx, creator,
			[][]byte{[]byte(fmt.Sprintf("statement:%d", i))},
			[]time.Time{maturity},
			[]uint64{topic.ID},
			domain.SideYes, big.NewInt(10_000))
		require.NoError(t, err)
	}

	a := New(standaloneConfig(), logger)
	due := a.collectDuePools(ctx, svc, time.Now().Add(3*time.Hour))
	require.Len(t, due, total)
}
