package liquidation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/custody"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/insurance"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/oracle"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/positions"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotEligible       = errors.New("position not eligible for liquidation")
	ErrInvalidPercentage = errors.New("percentage must be in (0,100]")
	ErrKeeperRequired    = errors.New("keeper account required")
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)

	smallBonusRate = decimal.NewFromFloat(0.05)
	largeBonusRate = decimal.NewFromFloat(0.10)
)

type Config struct {
	Asset                  string
	PoolAccount            string
	LargePositionThreshold decimal.Decimal
}

// Engine executes permissionless liquidations. Any caller may submit a
// position id; eligibility is decided solely from a fresh observation,
// so a call either liquidates or fails with ErrNotEligible.
type Engine struct {
	store  positions.Store
	oracle *oracle.Adapter
	vault  custody.Vault
	fund   *insurance.Fund
	cfg    Config
}

func NewEngine(store positions.Store, adapter *oracle.Adapter, vault custody.Vault, fund *insurance.Fund, cfg Config) *Engine {
	return &Engine{store: store, oracle: adapter, vault: vault, fund: fund, cfg: cfg}
}

// Liquidate closes the given percentage of an unhealthy position and
// settles the proceeds: bonus to the keeper, any remainder back to the
// owner, and shortfall covered by the insurance fund. When a concurrent
// mutation wins the version race the position is re-judged stale and
// the call fails with ErrNotEligible.
func (e *Engine) Liquidate(ctx context.Context, keeper string, id int64, percentage decimal.Decimal) (Outcome, error) {
	if keeper == "" {
		return Outcome{}, ErrKeeperRequired
	}
	if percentage.LessThanOrEqual(decimal.Zero) || percentage.GreaterThan(hundred) {
		return Outcome{}, ErrInvalidPercentage
	}
	if _, err := e.store.NextMarker(ctx); err != nil {
		return Outcome{}, err
	}
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	obs, err := e.oracle.Observe(ctx)
	if err != nil {
		return Outcome{}, err
	}
	pnl := positions.PnL(p.Direction, p.Notional, p.EntryPrice, obs.Price)
	if positions.MaintenanceHealthFactor(p.Collateral, pnl, p.Notional).GreaterThanOrEqual(one) {
		return Outcome{}, ErrNotEligible
	}
	rate := smallBonusRate
	if p.Notional.GreaterThanOrEqual(e.cfg.LargePositionThreshold) {
		rate = largeBonusRate
	}
	fraction := percentage.Div(hundred)
	out := Split(p.Collateral, pnl, fraction, rate)
	out.PositionID = p.ID

	// The settlement transfers land before the guarded mutation. When a
	// later step fails, every transfer already made is pulled straight
	// back in reverse order, so a failed liquidation moves no funds and
	// never splits a settlement.
	ref := uuid.NewString()
	var reversals []func() error
	unwind := func(cause error) error {
		for i := len(reversals) - 1; i >= 0; i-- {
			if err := reversals[i](); err != nil {
				cause = errors.Join(cause, fmt.Errorf("reversal failed: %w", err))
			}
		}
		return cause
	}
	if out.KeeperBonus.IsPositive() {
		if err := e.vault.Push(ctx, keeper, e.cfg.Asset, out.KeeperBonus, types.LedgerEntryTypeKeeperBonus, ref+":bonus"); err != nil {
			return Outcome{}, fmt.Errorf("keeper bonus transfer failed: %w", err)
		}
		reversals = append(reversals, func() error {
			return e.vault.Pull(ctx, keeper, e.cfg.Asset, out.KeeperBonus, types.LedgerEntryTypeKeeperBonus, ref+":bonus:reversal")
		})
	}
	if out.RemainderToOwner.IsPositive() {
		if err := e.vault.Push(ctx, p.Owner, e.cfg.Asset, out.RemainderToOwner, types.LedgerEntryTypePayout, ref+":remainder"); err != nil {
			return Outcome{}, unwind(fmt.Errorf("remainder transfer failed: %w", err))
		}
		owner := p.Owner
		reversals = append(reversals, func() error {
			return e.vault.Pull(ctx, owner, e.cfg.Asset, out.RemainderToOwner, types.LedgerEntryTypePayout, ref+":remainder:reversal")
		})
	}
	if out.BadDebt.IsPositive() {
		if err := e.fund.CoverBadDebt(ctx, e.cfg.Asset, out.BadDebt, e.cfg.PoolAccount); err != nil {
			return Outcome{}, unwind(fmt.Errorf("bad debt coverage failed: %w", err))
		}
		reversals = append(reversals, func() error {
			return e.fund.Reclaim(ctx, e.cfg.Asset, out.BadDebt, e.cfg.PoolAccount)
		})
	}

	if fraction.Equal(one) {
		err = e.store.Delete(ctx, p.ID, p.Version)
	} else {
		remaining := one.Sub(fraction)
		p.Collateral = p.Collateral.Mul(remaining)
		p.Notional = p.Notional.Mul(remaining)
		err = e.store.Update(ctx, p)
	}
	if err != nil {
		if errors.Is(err, positions.ErrVersionConflict) {
			err = ErrNotEligible
		}
		return Outcome{}, unwind(err)
	}
	return out, nil
}

// Candidate is one open position judged below maintenance at the batch
// observation.
type Candidate struct {
	PositionID              int64           `json:"position_id"`
	Owner                   string          `json:"owner"`
	MaintenanceHealthFactor decimal.Decimal `json:"maintenance_health_factor"`
}

// FindEligible scans a batch of open positions against a single fresh
// observation and returns the candidates below maintenance.
func (e *Engine) FindEligible(ctx context.Context, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 50
	}
	obs, err := e.oracle.Observe(ctx)
	if err != nil {
		return nil, err
	}
	open, err := e.store.ListOpen(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0)
	for _, p := range open {
		pnl := positions.PnL(p.Direction, p.Notional, p.EntryPrice, obs.Price)
		hf := positions.MaintenanceHealthFactor(p.Collateral, pnl, p.Notional)
		if hf.GreaterThanOrEqual(one) {
			continue
		}
		out = append(out, Candidate{PositionID: p.ID, Owner: p.Owner, MaintenanceHealthFactor: hf})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
