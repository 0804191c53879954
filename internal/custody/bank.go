// Package custody adapts external value ledgers to the engine's custody
// interface: an in-process bank for standalone mode and tests, and an ERC-20
// adapter for on-chain tokens.
package custody

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// Bank is an in-memory fungible ledger with approve/transferFrom semantics.
// The engine's escrow is an internal account; value only ever moves, never
// mints inside the custody path (Mint is the test faucet).
type Bank struct {
	mu         sync.Mutex
	balances   map[domain.Address]*big.Int
	allowances map[domain.Address]*big.Int
	escrow     *big.Int
}

// NewBank creates an empty Bank.
func NewBank() *Bank {
	return &Bank{
		balances:   make(map[domain.Address]*big.Int),
		allowances: make(map[domain.Address]*big.Int),
		escrow:     new(big.Int),
	}
}

// Mint credits an account out of thin air. Faucet for tests and standalone
// mode; not part of the custody interface.
func (b *Bank) Mint(account domain.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balances[account]
	if bal == nil {
		bal = new(big.Int)
	}
	b.balances[account] = new(big.Int).Add(bal, amount)
}

// Approve grants the escrow permission to pull up to amount from owner.
// Overwrites any previous allowance.
func (b *Bank) Approve(owner domain.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[owner] = new(big.Int).Set(amount)
}

// BalanceOf returns an account's balance.
func (b *Bank) BalanceOf(account domain.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balances[account]
	if bal == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// EscrowBalance returns the value currently held for pools.
func (b *Bank) EscrowBalance() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.escrow)
}

// TransferFrom pulls amount from payer into escrow, consuming allowance.
func (b *Bank) TransferFrom(_ context.Context, payer domain.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	allowance := b.allowances[payer]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("custody: allowance of %s: %w", payer.Hex(), domain.ErrInsufficientFunds)
	}
	balance := b.balances[payer]
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("custody: balance of %s: %w", payer.Hex(), domain.ErrInsufficientFunds)
	}

	allowance.Sub(allowance, amount)
	balance.Sub(balance, amount)
	b.escrow.Add(b.escrow, amount)
	return nil
}

// Transfer pays amount out of escrow to payee.
func (b *Bank) Transfer(_ context.Context, payee domain.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.escrow.Cmp(amount) < 0 {
		return fmt.Errorf("custody: escrow underfunded: %w", domain.ErrInsufficientFunds)
	}
	b.escrow.Sub(b.escrow, amount)
	bal := b.balances[payee]
	if bal == nil {
		bal = new(big.Int)
		b.balances[payee] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// Compile-time interface check.
var _ domain.CustodyToken = (*Bank)(nil)
