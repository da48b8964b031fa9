package positions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/custody"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/model"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/oracle"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLeverage  = errors.New("leverage out of bounds")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidFraction  = errors.New("fraction must be in (0,1]")
	ErrPositionTooSmall = errors.New("notional below minimum")
	ErrPositionTooNew   = errors.New("position is inside the minimum hold period")
	ErrNotOwner         = errors.New("not position owner")
	ErrUnsafeWithdrawal = errors.New("withdrawal would leave position below maintenance")
)

var one = decimal.NewFromInt(1)

type Service struct {
	store        Store
	oracle       *oracle.Adapter
	vault        custody.Vault
	asset        string
	minNotional  decimal.Decimal
	minHoldSteps int64
}

func NewService(store Store, adapter *oracle.Adapter, vault custody.Vault, asset string, minNotional decimal.Decimal, minHoldSteps int64) *Service {
	return &Service{
		store:        store,
		oracle:       adapter,
		vault:        vault,
		asset:        asset,
		minNotional:  minNotional,
		minHoldSteps: minHoldSteps,
	}
}

// Open pulls collateral into custody and records a new position priced
// at a freshly validated observation.
func (s *Service) Open(ctx context.Context, owner string, collateral decimal.Decimal, leverage int64, direction types.Direction) (model.Position, error) {
	if owner == "" {
		return model.Position{}, errors.New("owner required")
	}
	if collateral.LessThanOrEqual(decimal.Zero) {
		return model.Position{}, ErrInvalidAmount
	}
	if leverage < MinLeverage || leverage > MaxLeverage {
		return model.Position{}, ErrInvalidLeverage
	}
	if direction != types.DirectionLong && direction != types.DirectionShort {
		return model.Position{}, ErrInvalidDirection
	}
	notional := Notional(collateral, leverage)
	if notional.LessThan(s.minNotional) {
		return model.Position{}, ErrPositionTooSmall
	}
	obs, err := s.oracle.Observe(ctx)
	if err != nil {
		return model.Position{}, err
	}
	ref := uuid.NewString()
	if err := s.vault.Pull(ctx, owner, s.asset, collateral, types.LedgerEntryTypeCollateral, ref); err != nil {
		return model.Position{}, err
	}
	marker, err := s.store.NextMarker(ctx)
	if err != nil {
		return model.Position{}, s.refund(ctx, owner, collateral, ref, err)
	}
	p := model.Position{
		Owner:           owner,
		CollateralAsset: s.asset,
		Collateral:      collateral,
		Notional:        notional,
		EntryPrice:      obs.Price,
		Leverage:        leverage,
		Direction:       direction,
		OpenedAt:        time.Now().UTC(),
		OpenMarker:      marker,
	}
	created, err := s.store.Create(ctx, p)
	if err != nil {
		return model.Position{}, s.refund(ctx, owner, collateral, ref, err)
	}
	return created, nil
}

// Close settles a fraction of the position at a fresh price. The payout
// is the released collateral plus the proportional PnL, clamped at zero
// when the loss eats through the released share. fraction == 1 removes
// the position; a partial close scales collateral and size down and
// keeps the entry price and open marker.
func (s *Service) Close(ctx context.Context, owner string, id int64, fraction decimal.Decimal) (decimal.Decimal, error) {
	if fraction.LessThanOrEqual(decimal.Zero) || fraction.GreaterThan(one) {
		return decimal.Zero, ErrInvalidFraction
	}
	step, err := s.store.NextMarker(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if p.Owner != owner {
		return decimal.Zero, ErrNotOwner
	}
	if step-p.OpenMarker <= s.minHoldSteps {
		return decimal.Zero, ErrPositionTooNew
	}
	obs, err := s.oracle.Observe(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	pnl := PnL(p.Direction, p.Notional, p.EntryPrice, obs.Price)
	released := p.Collateral.Mul(fraction)
	payout := released.Add(pnl.Mul(fraction))
	if payout.IsNegative() {
		payout = decimal.Zero
	}
	// The payout lands before the guarded mutation. A failed transfer
	// aborts with the position untouched; a mutation that loses its
	// version race pulls the payout straight back. Either way no failure
	// path leaves a partial settlement.
	ref := uuid.NewString()
	if payout.IsPositive() {
		if err := s.vault.Push(ctx, owner, s.asset, payout, types.LedgerEntryTypePayout, ref); err != nil {
			return decimal.Zero, fmt.Errorf("payout transfer failed: %w", err)
		}
	}
	var mutErr error
	if fraction.Equal(one) {
		mutErr = s.store.Delete(ctx, p.ID, p.Version)
	} else {
		remaining := one.Sub(fraction)
		p.Collateral = p.Collateral.Mul(remaining)
		p.Notional = p.Notional.Mul(remaining)
		mutErr = s.store.Update(ctx, p)
	}
	if mutErr != nil {
		if payout.IsPositive() {
			if pullErr := s.vault.Pull(ctx, owner, s.asset, payout, types.LedgerEntryTypePayout, ref+":reversal"); pullErr != nil {
				return decimal.Zero, errors.Join(mutErr, fmt.Errorf("payout reversal failed: %w", pullErr))
			}
		}
		return decimal.Zero, mutErr
	}
	return payout, nil
}

// AddMargin tops up collateral. Notional is recomputed so that
// notional == collateral*leverage keeps holding after the change.
func (s *Service) AddMargin(ctx context.Context, owner string, id int64, amount decimal.Decimal) (model.Position, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.Position{}, ErrInvalidAmount
	}
	if _, err := s.store.NextMarker(ctx); err != nil {
		return model.Position{}, err
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Position{}, err
	}
	if p.Owner != owner {
		return model.Position{}, ErrNotOwner
	}
	ref := uuid.NewString()
	if err := s.vault.Pull(ctx, owner, s.asset, amount, types.LedgerEntryTypeCollateral, ref); err != nil {
		return model.Position{}, err
	}
	p.Collateral = p.Collateral.Add(amount)
	p.Notional = Notional(p.Collateral, p.Leverage)
	if err := s.store.Update(ctx, p); err != nil {
		return model.Position{}, s.refund(ctx, owner, amount, ref, err)
	}
	p.Version++
	return p, nil
}

// RemoveMargin releases collateral back to the owner, provided the
// shrunken position stays above the minimum notional and above its
// maintenance requirement at a fresh price.
func (s *Service) RemoveMargin(ctx context.Context, owner string, id int64, amount decimal.Decimal) (model.Position, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.Position{}, ErrInvalidAmount
	}
	if _, err := s.store.NextMarker(ctx); err != nil {
		return model.Position{}, err
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Position{}, err
	}
	if p.Owner != owner {
		return model.Position{}, ErrNotOwner
	}
	newCollateral := p.Collateral.Sub(amount)
	if newCollateral.LessThanOrEqual(decimal.Zero) {
		return model.Position{}, ErrInvalidAmount
	}
	newNotional := Notional(newCollateral, p.Leverage)
	if newNotional.LessThan(s.minNotional) {
		return model.Position{}, ErrPositionTooSmall
	}
	obs, err := s.oracle.Observe(ctx)
	if err != nil {
		return model.Position{}, err
	}
	pnl := PnL(p.Direction, newNotional, p.EntryPrice, obs.Price)
	if MaintenanceHealthFactor(newCollateral, pnl, newNotional).LessThan(one) {
		return model.Position{}, ErrUnsafeWithdrawal
	}
	// Same ordering as Close: the withdrawal transfer first, the guarded
	// shrink last, with a pull-back if the shrink loses.
	ref := uuid.NewString()
	if err := s.vault.Push(ctx, owner, s.asset, amount, types.LedgerEntryTypeWithdraw, ref); err != nil {
		return model.Position{}, fmt.Errorf("withdrawal transfer failed: %w", err)
	}
	p.Collateral = newCollateral
	p.Notional = newNotional
	if err := s.store.Update(ctx, p); err != nil {
		if pullErr := s.vault.Pull(ctx, owner, s.asset, amount, types.LedgerEntryTypeWithdraw, ref+":reversal"); pullErr != nil {
			return model.Position{}, errors.Join(err, fmt.Errorf("withdrawal reversal failed: %w", pullErr))
		}
		return model.Position{}, err
	}
	p.Version++
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (model.Position, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	return s.store.ListByOwner(ctx, owner)
}

// Valuation is the read-model for the health endpoints. Both health
// ratios are reported: the trader-facing one over collateral and the
// maintenance one the liquidation engine acts on.
type Valuation struct {
	PositionID              int64           `json:"position_id"`
	Price                   decimal.Decimal `json:"price"`
	PnL                     decimal.Decimal `json:"pnl"`
	LedgerHealthFactor      decimal.Decimal `json:"ledger_health_factor"`
	MaintenanceHealthFactor decimal.Decimal `json:"maintenance_health_factor"`
}

func (s *Service) Value(ctx context.Context, id int64) (Valuation, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Valuation{}, err
	}
	obs, err := s.oracle.Observe(ctx)
	if err != nil {
		return Valuation{}, err
	}
	pnl := PnL(p.Direction, p.Notional, p.EntryPrice, obs.Price)
	return Valuation{
		PositionID:              p.ID,
		Price:                   obs.Price,
		PnL:                     pnl,
		LedgerHealthFactor:      LedgerHealthFactor(p.Collateral, pnl),
		MaintenanceHealthFactor: MaintenanceHealthFactor(p.Collateral, pnl, p.Notional),
	}, nil
}

// refund undoes a collateral pull after a later step failed so no
// failure path leaves funds stranded in custody.
func (s *Service) refund(ctx context.Context, owner string, amount decimal.Decimal, ref string, cause error) error {
	if pushErr := s.vault.Push(ctx, owner, s.asset, amount, types.LedgerEntryTypePayout, ref+":refund"); pushErr != nil {
		return errors.Join(cause, fmt.Errorf("refund failed: %w", pushErr))
	}
	return cause
}
