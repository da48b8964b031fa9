package liquidation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSplitSolvent(t *testing.T) {
	// effective collateral 400, full liquidation at 5%
	out := Split(d("1000"), d("-600"), d("1"), d("0.05"))
	require.True(t, out.LiquidatedCollateral.Equal(d("400")))
	require.True(t, out.KeeperBonus.Equal(d("20")))
	require.True(t, out.RemainderToOwner.Equal(d("380")))
	require.True(t, out.BadDebt.IsZero())
}

func TestSplitSolventPartial(t *testing.T) {
	out := Split(d("1000"), d("-600"), d("0.5"), d("0.05"))
	require.True(t, out.LiquidatedCollateral.Equal(d("200")))
	require.True(t, out.KeeperBonus.Equal(d("10")))
	require.True(t, out.RemainderToOwner.Equal(d("190")))
	require.True(t, out.BadDebt.IsZero())
}

func TestSplitUnderwater(t *testing.T) {
	// loss exceeds collateral by 100: owner gets nothing, the shortfall
	// is booked as bad debt
	out := Split(d("1000"), d("-1100"), d("1"), d("0.05"))
	require.True(t, out.LiquidatedCollateral.Equal(d("1000")))
	require.True(t, out.KeeperBonus.Equal(d("50")))
	require.True(t, out.RemainderToOwner.IsZero())
	require.True(t, out.BadDebt.Equal(d("100")))
}

func TestSplitUnderwaterPartial(t *testing.T) {
	out := Split(d("1000"), d("-1100"), d("0.25"), d("0.10"))
	require.True(t, out.LiquidatedCollateral.Equal(d("250")))
	require.True(t, out.KeeperBonus.Equal(d("25")))
	require.True(t, out.RemainderToOwner.IsZero())
	require.True(t, out.BadDebt.Equal(d("25")))
}

func TestSplitBonusCappedAtHalfCollateral(t *testing.T) {
	// effective 900 at a 90% rate would pay 810; the cap holds it to 500
	out := Split(d("1000"), d("-100"), d("1"), d("0.9"))
	require.True(t, out.KeeperBonus.Equal(d("500")))
	require.True(t, out.RemainderToOwner.Equal(d("400")))
}
