package custody

import (
	"context"
	"sync"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/shopspring/decimal"
)

type balanceKey struct {
	Owner string
	Asset string
}

// MemVault is the paper-mode vault: plain balances guarded by a mutex.
// Pulled funds sit in a single custody bucket per asset so over-paying
// out of custody fails just as loudly as an overdrawn trader account.
type MemVault struct {
	mu       sync.Mutex
	balances map[balanceKey]decimal.Decimal
	custody  map[string]decimal.Decimal
}

func NewMemVault() *MemVault {
	return &MemVault{
		balances: make(map[balanceKey]decimal.Decimal),
		custody:  make(map[string]decimal.Decimal),
	}
}

// Credit funds an owner account directly (deposits, test fixtures).
func (v *MemVault) Credit(owner, asset string, amount decimal.Decimal) {
	v.mu.Lock()
	key := balanceKey{Owner: owner, Asset: asset}
	v.balances[key] = v.balances[key].Add(amount)
	v.mu.Unlock()
}

func (v *MemVault) Deposit(ctx context.Context, owner, asset string, amount decimal.Decimal, ref string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	v.Credit(owner, asset, amount)
	return nil
}

func (v *MemVault) Withdraw(ctx context.Context, owner, asset string, amount decimal.Decimal, ref string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	key := balanceKey{Owner: owner, Asset: asset}
	if v.balances[key].LessThan(amount) {
		return ErrInsufficientBalance
	}
	v.balances[key] = v.balances[key].Sub(amount)
	return nil
}

func (v *MemVault) Pull(ctx context.Context, owner, asset string, amount decimal.Decimal, entryType types.LedgerEntryType, ref string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	key := balanceKey{Owner: owner, Asset: asset}
	if v.balances[key].LessThan(amount) {
		return ErrInsufficientBalance
	}
	v.balances[key] = v.balances[key].Sub(amount)
	v.custody[asset] = v.custody[asset].Add(amount)
	return nil
}

func (v *MemVault) Push(ctx context.Context, recipient, asset string, amount decimal.Decimal, entryType types.LedgerEntryType, ref string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.custody[asset].LessThan(amount) {
		return ErrInsufficientBalance
	}
	v.custody[asset] = v.custody[asset].Sub(amount)
	key := balanceKey{Owner: recipient, Asset: asset}
	v.balances[key] = v.balances[key].Add(amount)
	return nil
}

func (v *MemVault) Balance(ctx context.Context, owner, asset string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[balanceKey{Owner: owner, Asset: asset}], nil
}
