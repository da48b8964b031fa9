package positions

import (
	"context"
	"testing"
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/custody"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/model"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/oracle"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	store *MemStore
	vault *custody.MemVault
	feed  *oracle.StaticFeed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLiquidity(t, "100000")
}

func newFixtureWithLiquidity(t *testing.T, liquidity string) *fixture {
	t.Helper()
	feed := oracle.NewStaticFeed()
	feed.SetPrice(d("2000"))
	adapter, err := oracle.NewAdapter(context.Background(), feed, oracle.NewMemStateStore(), nil, time.Second, 300, 2000, true)
	require.NoError(t, err)
	vault := custody.NewMemVault()
	// Seed venue custody with pool liquidity so winning payouts clear.
	if d(liquidity).IsPositive() {
		vault.Credit("pool", "USD", d(liquidity))
		require.NoError(t, vault.Pull(context.Background(), "pool", "USD", d(liquidity), types.LedgerEntryTypeCollateral, "seed"))
	}
	store := NewMemStore()
	return &fixture{
		svc:   NewService(store, adapter, vault, "USD", d("100"), 1),
		store: store,
		vault: vault,
		feed:  feed,
	}
}

func (f *fixture) balance(t *testing.T, owner string) decimal.Decimal {
	t.Helper()
	b, err := f.vault.Balance(context.Background(), owner, "USD")
	require.NoError(t, err)
	return b
}

// advance claims one step of the venue sequence so the hold guard clears.
func (f *fixture) advance(t *testing.T) {
	t.Helper()
	_, err := f.store.NextMarker(context.Background())
	require.NoError(t, err)
}

func TestOpenValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))

	_, err := f.svc.Open(ctx, "alice", d("1000"), 1, types.DirectionLong)
	require.ErrorIs(t, err, ErrInvalidLeverage)
	_, err = f.svc.Open(ctx, "alice", d("1000"), 21, types.DirectionLong)
	require.ErrorIs(t, err, ErrInvalidLeverage)
	_, err = f.svc.Open(ctx, "alice", d("1000"), 10, types.Direction("sideways"))
	require.ErrorIs(t, err, ErrInvalidDirection)
	_, err = f.svc.Open(ctx, "alice", d("-5"), 10, types.DirectionLong)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.svc.Open(ctx, "alice", d("10"), 5, types.DirectionLong)
	require.ErrorIs(t, err, ErrPositionTooSmall)
	_, err = f.svc.Open(ctx, "alice", d("5000"), 10, types.DirectionLong)
	require.ErrorIs(t, err, custody.ErrInsufficientBalance)

	// validation failures never touched the balance
	require.True(t, f.balance(t, "alice").Equal(d("1000")))
}

func TestOpenPullsCollateral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))

	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)
	require.True(t, p.Notional.Equal(d("10000")))
	require.True(t, p.EntryPrice.Equal(d("2000")))
	require.Equal(t, int64(1), p.Version)
	require.True(t, f.balance(t, "alice").IsZero())
}

func TestCloseInsideHoldPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)

	// the close itself claims the very next step, so it is one step too early
	_, err = f.svc.Close(ctx, "alice", p.ID, d("1"))
	require.ErrorIs(t, err, ErrPositionTooNew)

	// the rejected attempt consumed a step; the retry is past the hold
	_, err = f.svc.Close(ctx, "alice", p.ID, d("1"))
	require.NoError(t, err)
}

func TestCloseFullProfit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)
	f.advance(t)

	f.feed.SetPrice(d("2100"))
	payout, err := f.svc.Close(ctx, "alice", p.ID, d("1"))
	require.NoError(t, err)
	require.True(t, payout.Equal(d("1500")), "got %s", payout)
	require.True(t, f.balance(t, "alice").Equal(d("1500")))

	_, err = f.svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCloseFullLoss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)
	f.advance(t)

	f.feed.SetPrice(d("1900"))
	payout, err := f.svc.Close(ctx, "alice", p.ID, d("1"))
	require.NoError(t, err)
	require.True(t, payout.Equal(d("500")), "got %s", payout)
}

func TestClosePayoutClampedAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)
	f.advance(t)

	// loss exceeds collateral: 10000*(1700-2000)/2000 = -1500
	f.feed.SetPrice(d("1700"))
	payout, err := f.svc.Close(ctx, "alice", p.ID, d("1"))
	require.NoError(t, err)
	require.True(t, payout.IsZero())
	require.True(t, f.balance(t, "alice").IsZero())
}

func TestCloseShortMirrorsLong(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionShort)
	require.NoError(t, err)
	f.advance(t)

	// the short gains exactly what the long in the profit scenario gains
	f.feed.SetPrice(d("1900"))
	payout, err := f.svc.Close(ctx, "alice", p.ID, d("1"))
	require.NoError(t, err)
	require.True(t, payout.Equal(d("1500")), "got %s", payout)
}

func TestPartialThenRemainderMatchesFullClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)
	f.advance(t)

	f.feed.SetPrice(d("2100"))
	first, err := f.svc.Close(ctx, "alice", p.ID, d("0.5"))
	require.NoError(t, err)
	require.True(t, first.Equal(d("750")), "got %s", first)

	remaining, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, remaining.Collateral.Equal(d("500")))
	require.True(t, remaining.Notional.Equal(d("5000")))
	require.True(t, remaining.EntryPrice.Equal(d("2000")))

	second, err := f.svc.Close(ctx, "alice", p.ID, d("1"))
	require.NoError(t, err)
	require.True(t, first.Add(second).Equal(d("1500")), "total %s", first.Add(second))
}

func TestCloseRejectsForeignOwnerAndBadFraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)
	f.advance(t)

	_, err = f.svc.Close(ctx, "bob", p.ID, d("1"))
	require.ErrorIs(t, err, ErrNotOwner)
	_, err = f.svc.Close(ctx, "alice", p.ID, d("0"))
	require.ErrorIs(t, err, ErrInvalidFraction)
	_, err = f.svc.Close(ctx, "alice", p.ID, d("1.5"))
	require.ErrorIs(t, err, ErrInvalidFraction)
}

func TestAddMarginRecomputesNotional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1500"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)

	updated, err := f.svc.AddMargin(ctx, "alice", p.ID, d("500"))
	require.NoError(t, err)
	require.True(t, updated.Collateral.Equal(d("1500")))
	require.True(t, updated.Notional.Equal(d("15000")))
	require.Equal(t, p.Version+1, updated.Version)
	require.True(t, f.balance(t, "alice").IsZero())
}

func TestRemoveMarginGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)

	// healthy price: a modest withdrawal clears
	f.feed.SetPrice(d("1950"))
	updated, err := f.svc.RemoveMargin(ctx, "alice", p.ID, d("400"))
	require.NoError(t, err)
	require.True(t, updated.Collateral.Equal(d("600")))
	require.True(t, updated.Notional.Equal(d("6000")))
	require.True(t, f.balance(t, "alice").Equal(d("400")))

	// deep drawdown: any further withdrawal would breach maintenance
	f.feed.SetPrice(d("1850"))
	_, err = f.svc.RemoveMargin(ctx, "alice", p.ID, d("1"))
	require.ErrorIs(t, err, ErrUnsafeWithdrawal)

	// withdrawing everything is never valid
	_, err = f.svc.RemoveMargin(ctx, "alice", p.ID, d("600"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestValueReportsBothHealthFactors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)

	f.feed.SetPrice(d("1880"))
	v, err := f.svc.Value(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, v.PnL.Equal(d("-600")), "got %s", v.PnL)
	require.True(t, v.LedgerHealthFactor.Equal(d("0.4")), "got %s", v.LedgerHealthFactor)
	require.True(t, v.MaintenanceHealthFactor.Equal(d("0.8")), "got %s", v.MaintenanceHealthFactor)
}

func TestCloseFailedPayoutLeavesPositionIntact(t *testing.T) {
	f := newFixtureWithLiquidity(t, "0")
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)
	f.advance(t)

	// custody holds only the pulled collateral; a 1500 payout cannot clear
	f.feed.SetPrice(d("2100"))
	_, err = f.svc.Close(ctx, "alice", p.ID, d("1"))
	require.ErrorIs(t, err, custody.ErrInsufficientBalance)

	// the failed close changed nothing: position intact, owner unpaid
	current, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, current.Collateral.Equal(d("1000")))
	require.True(t, current.Notional.Equal(d("10000")))
	require.Equal(t, p.Version, current.Version)
	require.True(t, f.balance(t, "alice").IsZero())
}

// contestedStore lands a competing write between the service's read and
// its guarded mutation, forcing the version race to be lost.
type contestedStore struct {
	*MemStore
}

func (s *contestedStore) Get(ctx context.Context, id int64) (model.Position, error) {
	p, err := s.MemStore.Get(ctx, id)
	if err != nil {
		return model.Position{}, err
	}
	if err := s.MemStore.Update(ctx, p); err != nil {
		return model.Position{}, err
	}
	return p, nil
}

func TestCloseReversesPayoutWhenVersionRaceLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contested := &contestedStore{MemStore: f.store}
	svc := NewService(contested, f.svc.oracle, f.vault, "USD", d("100"), 1)
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)
	f.advance(t)

	f.feed.SetPrice(d("2100"))
	_, err = svc.Close(ctx, "alice", p.ID, d("1"))
	require.ErrorIs(t, err, ErrVersionConflict)

	// the payout that had already moved was pulled straight back
	require.True(t, f.balance(t, "alice").IsZero())
	current, err := f.store.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, current.Collateral.Equal(d("1000")))
}

func TestVersionConflictOnConcurrentUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.Credit("alice", "USD", d("1000"))
	p, err := f.svc.Open(ctx, "alice", d("1000"), 10, types.DirectionLong)
	require.NoError(t, err)

	// a winner bumps the version; the stale copy must lose cleanly
	current, err := f.store.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.Update(ctx, current))

	require.ErrorIs(t, f.store.Update(ctx, current), ErrVersionConflict)
	require.ErrorIs(t, f.store.Delete(ctx, p.ID, current.Version), ErrVersionConflict)
}
