package custody

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

var (
	payer = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	payee = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestTransferFromMovesValueIntoEscrow(t *testing.T) {
	ctx := context.Background()
	b := NewBank()
	b.Mint(payer, big.NewInt(1000))
	b.Approve(payer, big.NewInt(600))

	require.NoError(t, b.TransferFrom(ctx, payer, big.NewInt(400)))

	assert.Equal(t, big.NewInt(600), b.BalanceOf(payer))
	assert.Equal(t, big.NewInt(400), b.EscrowBalance())

	// Allowance was consumed: only 200 left.
	err := b.TransferFrom(ctx, payer, big.NewInt(300))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	require.NoError(t, b.TransferFrom(ctx, payer, big.NewInt(200)))
	assert.Equal(t, big.NewInt(600), b.EscrowBalance())
}

func TestTransferFromWithoutApproval(t *testing.T) {
	b := NewBank()
	b.Mint(payer, big.NewInt(1000))

	err := b.TransferFrom(context.Background(), payer, big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, big.NewInt(1000), b.BalanceOf(payer))
	assert.Zero(t, b.EscrowBalance().Sign())
}

func TestTransferFromAllowanceWithoutBalance(t *testing.T) {
	b := NewBank()
	b.Approve(payer, big.NewInt(1000))

	err := b.TransferFrom(context.Background(), payer, big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestTransferPaysOutOfEscrow(t *testing.T) {
	ctx := context.Background()
	b := NewBank()
	b.Mint(payer, big.NewInt(500))
	b.Approve(payer, big.NewInt(500))
	require.NoError(t, b.TransferFrom(ctx, payer, big.NewInt(500)))

	require.NoError(t, b.Transfer(ctx, payee, big.NewInt(300)))
	assert.Equal(t, big.NewInt(300), b.BalanceOf(payee))
	assert.Equal(t, big.NewInt(200), b.EscrowBalance())

	// Escrow never goes negative.
	err := b.Transfer(ctx, payee, big.NewInt(201))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestMintAccumulates(t *testing.T) {
	b := NewBank()
	b.Mint(payer, big.NewInt(100))
	b.Mint(payer, big.NewInt(50))
	assert.Equal(t, big.NewInt(150), b.BalanceOf(payer))
}
