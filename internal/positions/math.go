package positions

import (
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/oracle"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/shopspring/decimal"
)

const (
	MinLeverage = 2
	MaxLeverage = 20

	// GlobalMaxLeverage anchors the maintenance requirement used for
	// liquidation eligibility: a position must keep at least
	// notional/GlobalMaxLeverage of effective collateral.
	GlobalMaxLeverage = 20
)

// Notional is the economic exposure: collateral * leverage.
func Notional(collateral decimal.Decimal, leverage int64) decimal.Decimal {
	return collateral.Mul(decimal.NewFromInt(leverage))
}

// PnL values a position of the given size against a fresh price.
// Long: size*(price-entry)/entry. Short is the exact negation, so
// PnL(long) == -PnL(short) for the same inputs. Multiplication happens
// before the single division to avoid compounding rounding.
func PnL(direction types.Direction, size, entry, price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(entry)
	if direction == types.DirectionShort {
		diff = entry.Sub(price)
	}
	return size.Mul(diff).DivRound(entry, oracle.PriceScale)
}

// LedgerHealthFactor is the trader-facing ratio (collateral+pnl)/collateral:
// 1.0 means break-even at open.
func LedgerHealthFactor(collateral, pnl decimal.Decimal) decimal.Decimal {
	return collateral.Add(pnl).DivRound(collateral, oracle.PriceScale)
}

// MaintenanceMargin is the minimum effective collateral a position of
// this notional must retain before it becomes liquidatable.
func MaintenanceMargin(notional decimal.Decimal) decimal.Decimal {
	return notional.DivRound(decimal.NewFromInt(GlobalMaxLeverage), oracle.PriceScale)
}

// MaintenanceHealthFactor is the liquidation-eligibility ratio
// (collateral+pnl)/(notional/GlobalMaxLeverage). Below 1.0 the position
// may be force-closed.
func MaintenanceHealthFactor(collateral, pnl, notional decimal.Decimal) decimal.Decimal {
	maintenance := MaintenanceMargin(notional)
	if !maintenance.IsPositive() {
		return decimal.Zero
	}
	return collateral.Add(pnl).DivRound(maintenance, oracle.PriceScale)
}
