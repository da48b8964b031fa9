package insurance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/custody"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientReserve = errors.New("insufficient insurance reserve")
	ErrAssetMismatch       = errors.New("unsupported reserve asset")
)

// CoverageEvent records one bad-debt payment out of the reserve.
type CoverageEvent struct {
	ID        string          `json:"id"`
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Recipient string          `json:"recipient"`
	CreatedAt time.Time       `json:"created_at"`
}

// Fund holds the insurance reserve that absorbs liquidation shortfalls.
// CoverBadDebt is all-or-nothing: it pays the full amount or fails
// without touching the reserve.
type Fund struct {
	mu           sync.Mutex
	asset        string
	vault        custody.Vault
	reserve      decimal.Decimal
	totalCovered decimal.Decimal
	events       []CoverageEvent
}

func NewFund(vault custody.Vault, asset string) *Fund {
	return &Fund{vault: vault, asset: asset}
}

// Contribute pulls funds from a contributor into the reserve.
func (f *Fund) Contribute(ctx context.Context, from string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return custody.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.vault.Pull(ctx, from, f.asset, amount, types.LedgerEntryTypeContribution, uuid.NewString()); err != nil {
		return err
	}
	f.reserve = f.reserve.Add(amount)
	return nil
}

func (f *Fund) CoverBadDebt(ctx context.Context, asset string, amount decimal.Decimal, recipient string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return custody.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if asset != f.asset {
		return ErrAssetMismatch
	}
	if f.reserve.LessThan(amount) {
		return ErrInsufficientReserve
	}
	event := CoverageEvent{
		ID:        uuid.NewString(),
		Asset:     asset,
		Amount:    amount,
		Recipient: recipient,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.vault.Push(ctx, recipient, asset, amount, types.LedgerEntryTypeBadDebt, event.ID); err != nil {
		return err
	}
	f.reserve = f.reserve.Sub(amount)
	f.totalCovered = f.totalCovered.Add(amount)
	f.events = append(f.events, event)
	return nil
}

// Reclaim reverses a coverage payment whose settlement was not
// admitted: the amount is pulled back from the recipient and restored
// to the reserve.
func (f *Fund) Reclaim(ctx context.Context, asset string, amount decimal.Decimal, recipient string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return custody.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if asset != f.asset {
		return ErrAssetMismatch
	}
	if err := f.vault.Pull(ctx, recipient, asset, amount, types.LedgerEntryTypeBadDebt, uuid.NewString()); err != nil {
		return err
	}
	f.reserve = f.reserve.Add(amount)
	f.totalCovered = f.totalCovered.Sub(amount)
	return nil
}

func (f *Fund) Reserve() decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserve
}

func (f *Fund) TotalCovered() decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalCovered
}

func (f *Fund) Events() []CoverageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CoverageEvent, len(f.events))
	copy(out, f.events)
	return out
}
