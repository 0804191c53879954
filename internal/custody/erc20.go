package custody

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// erc20ABI is the minimal ERC-20 surface the adapter needs.
const erc20ABI = `[
  {"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]},
  {"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]},
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"type":"uint256"}]},
  {"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"type":"uint256"}]}
]`

// defaultGasLimit covers ERC-20 transfer/transferFrom calls with headroom.
const defaultGasLimit uint64 = 120_000

// ERC20Config holds the on-chain custody parameters.
type ERC20Config struct {
	RPCURL        string
	TokenAddress  string
	PrivateKeyHex string
	ChainID       int64
	GasLimit      uint64
}

// ERC20 implements domain.CustodyToken against an on-chain ERC-20 token.
// The escrow account is the address derived from the configured key; every
// payer must approve it before staking.
type ERC20 struct {
	client   *ethclient.Client
	token    common.Address
	key      *ecdsa.PrivateKey
	escrow   common.Address
	chainID  *big.Int
	abi      abi.ABI
	gasLimit uint64
	logger   *slog.Logger

	// mu serializes nonce assignment across concurrent transfers.
	mu sync.Mutex
}

// NewERC20 dials the RPC endpoint and prepares the adapter.
func NewERC20(ctx context.Context, cfg ERC20Config, logger *slog.Logger) (*ERC20, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("custody: dial %s: %w", cfg.RPCURL, err)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("custody: invalid escrow key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("custody: parse erc20 abi: %w", err)
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}

	return &ERC20{
		client:   client,
		token:    common.HexToAddress(cfg.TokenAddress),
		key:      key,
		escrow:   ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(cfg.ChainID),
		abi:      parsed,
		gasLimit: gasLimit,
		logger:   logger.With(slog.String("component", "custody")),
	}, nil
}

// Close releases the RPC connection.
func (c *ERC20) Close() {
	c.client.Close()
}

// Escrow returns the escrow account address.
func (c *ERC20) Escrow() domain.Address {
	return c.escrow
}

// TransferFrom pulls amount from payer into escrow. An insufficient balance
// or allowance surfaces as domain.ErrInsufficientFunds before any gas is
// spent.
func (c *ERC20) TransferFrom(ctx context.Context, payer domain.Address, amount *big.Int) error {
	allowance, err := c.viewUint(ctx, "allowance", payer, c.escrow)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("custody: allowance of %s: %w", payer.Hex(), domain.ErrInsufficientFunds)
	}
	balance, err := c.viewUint(ctx, "balanceOf", payer)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("custody: balance of %s: %w", payer.Hex(), domain.ErrInsufficientFunds)
	}

	return c.execute(ctx, "transferFrom", payer, c.escrow, amount)
}

// Transfer pays amount out of escrow to payee.
func (c *ERC20) Transfer(ctx context.Context, payee domain.Address, amount *big.Int) error {
	return c.execute(ctx, "transfer", payee, amount)
}

// viewUint performs an eth_call on a view method returning a single uint256.
func (c *ERC20) viewUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("custody: pack %s: %w", method, err)
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.token, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("custody: call %s: %w", method, err)
	}
	vals, err := c.abi.Unpack(method, out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("custody: unpack %s: %w", method, err)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("custody: %s returned non-uint256", method)
	}
	return v, nil
}

// execute signs, sends and waits for a state-changing token call.
func (c *ERC20) execute(ctx context.Context, method string, args ...any) error {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("custody: pack %s: %w", method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.client.PendingNonceAt(ctx, c.escrow)
	if err != nil {
		return fmt.Errorf("custody: nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("custody: gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.token,
		Gas:      c.gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return fmt.Errorf("custody: sign %s: %w", method, err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("custody: send %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, c.client, signed)
	if err != nil {
		return fmt.Errorf("custody: wait %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("custody: %s reverted (tx %s): %w", method, signed.Hash().Hex(), domain.ErrInsufficientFunds)
	}

	c.logger.DebugContext(ctx, "token call mined",
		slog.String("method", method),
		slog.String("tx", signed.Hash().Hex()),
	)
	return nil
}

// Compile-time interface check.
var _ domain.CustodyToken = (*ERC20)(nil)
