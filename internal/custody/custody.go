package custody

import (
	"context"
	"errors"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Vault moves collateral between trader accounts and venue custody.
// Pull and Push are atomic: they either move the full amount or fail
// without touching any balance.
type Vault interface {
	Pull(ctx context.Context, owner, asset string, amount decimal.Decimal, entryType types.LedgerEntryType, ref string) error
	Push(ctx context.Context, recipient, asset string, amount decimal.Decimal, entryType types.LedgerEntryType, ref string) error
	Balance(ctx context.Context, owner, asset string) (decimal.Decimal, error)
}

// Bank is the external funding edge of a vault: deposits bring value in
// from outside the venue, withdrawals send it back out.
type Bank interface {
	Deposit(ctx context.Context, owner, asset string, amount decimal.Decimal, ref string) error
	Withdraw(ctx context.Context, owner, asset string, amount decimal.Decimal, ref string) error
}
