package liquidation

import "github.com/shopspring/decimal"

var two = decimal.NewFromInt(2)

// Outcome is the settlement of one liquidation call.
type Outcome struct {
	PositionID           int64           `json:"position_id"`
	LiquidatedCollateral decimal.Decimal `json:"liquidated_collateral"`
	KeeperBonus          decimal.Decimal `json:"keeper_bonus"`
	RemainderToOwner     decimal.Decimal `json:"remainder_to_owner"`
	BadDebt              decimal.Decimal `json:"bad_debt"`
}

// Split divides the liquidated share of a position between the keeper,
// the owner and the insurance fund. fraction is the liquidated share in
// (0,1], bonusRate the keeper's cut of the liquidated value. The bonus
// never exceeds half the position's collateral, so a keeper cannot take
// more than the owner stands to lose.
func Split(collateral, pnl, fraction, bonusRate decimal.Decimal) Outcome {
	effective := collateral.Add(pnl)
	bonusCap := collateral.Div(two)
	if effective.IsPositive() {
		liquidated := effective.Mul(fraction)
		bonus := liquidated.Mul(bonusRate)
		if bonus.GreaterThan(bonusCap) {
			bonus = bonusCap
		}
		return Outcome{
			LiquidatedCollateral: liquidated,
			KeeperBonus:          bonus,
			RemainderToOwner:     liquidated.Sub(bonus),
		}
	}
	// Underwater: the liquidated share of raw collateral funds the bonus
	// up to the cap, the owner gets nothing, and the shortfall share is
	// booked as bad debt.
	liquidated := collateral.Mul(fraction)
	bonus := liquidated.Mul(bonusRate)
	if bonus.GreaterThan(bonusCap) {
		bonus = bonusCap
	}
	return Outcome{
		LiquidatedCollateral: liquidated,
		KeeperBonus:          bonus,
		BadDebt:              effective.Neg().Mul(fraction),
	}
}
