package domain

import (
	"context"
	"math/big"
)

// CustodyToken is the external fungible balance ledger holding staked value.
// The engine only moves value between participants and its escrow account;
// it never mints or burns.
type CustodyToken interface {
	// TransferFrom moves amount from payer into escrow. The payer must
	// have pre-approved at least amount; otherwise ErrInsufficientFunds.
	TransferFrom(ctx context.Context, payer Address, amount *big.Int) error
	// Transfer moves amount out of escrow to payee.
	Transfer(ctx context.Context, payee Address, amount *big.Int) error
}
