package model

import (
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/shopspring/decimal"
)

// Position is one leveraged exposure against the reference price.
// Notional stays equal to Collateral*Leverage through every mutation.
// Version is an optimistic concurrency counter: every update or delete
// must name the version it read, and loses cleanly on a mismatch.
type Position struct {
	ID              int64           `json:"id"`
	Owner           string          `json:"owner"`
	CollateralAsset string          `json:"collateral_asset"`
	Collateral      decimal.Decimal `json:"collateral"`
	Notional        decimal.Decimal `json:"notional"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	Leverage        int64           `json:"leverage"`
	Direction       types.Direction `json:"direction"`
	OpenedAt        time.Time       `json:"opened_at"`
	OpenMarker      int64           `json:"open_marker"`
	Version         int64           `json:"version"`
}
