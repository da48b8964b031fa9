package oracle

import (
	"context"
	"testing"
	"time"

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

func newAdapter(t *testing.T, feed Feed, breaker bool) *Adapter {
	t.Helper()
	a, err := NewAdapter(context.Background(), feed, NewMemStateStore(), nil, time.Second, 300, 500, breaker)
	require.NoError(t, err)
	return a
}

func TestObserveAcceptsFreshRound(t *testing.T) {
	feed := NewStaticFeed()
	feed.SetPrice(d("1932.45"))
	a := newAdapter(t, feed, true)

	obs, err := a.Observe(context.Background())
	require.NoError(t, err)
	require.True(t, obs.Price.Equal(d("1932.45")))
	require.True(t, a.State().LastPrice.Equal(d("1932.45")))
}

func TestObserveNormalizesFeedDecimals(t *testing.T) {
	feed := NewStaticFeed()
	// chainlink-style: 1932.45 at 8 decimals
	feed.SetRound(Round{Answer: d("193245000000"), Decimals: 8, RoundID: 7, UpdatedAt: time.Now().UTC()})
	a := newAdapter(t, feed, true)

	obs, err := a.Observe(context.Background())
	require.NoError(t, err)
	require.True(t, obs.Price.Equal(d("1932.45")), "got %s", obs.Price)
	require.Equal(t, int64(7), obs.RoundID)
}

func TestObserveRejectsStaleRound(t *testing.T) {
	feed := NewStaticFeed()
	feed.SetRound(Round{Answer: d("1932"), Decimals: 0, RoundID: 1, UpdatedAt: time.Now().Add(-10 * time.Minute)})
	a := newAdapter(t, feed, true)

	_, err := a.Observe(context.Background())
	require.ErrorIs(t, err, ErrStalePrice)
	require.False(t, a.State().Paused, "staleness must not trip the breaker")
}

func TestObserveRejectsNonPositivePrice(t *testing.T) {
	feed := NewStaticFeed()
	a := newAdapter(t, feed, true)

	for _, raw := range []string{"0", "-1932"} {
		feed.SetRound(Round{Answer: d(raw), Decimals: 0, RoundID: 1, UpdatedAt: time.Now().UTC()})
		_, err := a.Observe(context.Background())
		require.ErrorIs(t, err, ErrInvalidPrice, "answer %s", raw)
	}
}

func TestObserveDeviationWithinThreshold(t *testing.T) {
	feed := NewStaticFeed()
	feed.SetPrice(d("2000"))
	a := newAdapter(t, feed, true)
	_, err := a.Observe(context.Background())
	require.NoError(t, err)

	// 4.9% move: 490 bps, inside the 500 bps threshold
	feed.SetPrice(d("2098"))
	obs, err := a.Observe(context.Background())
	require.NoError(t, err)
	require.True(t, obs.Price.Equal(d("2098")))
}

func TestObserveDeviationTripsBreaker(t *testing.T) {
	feed := NewStaticFeed()
	feed.SetPrice(d("2000"))
	a := newAdapter(t, feed, true)
	_, err := a.Observe(context.Background())
	require.NoError(t, err)

	// 5.1% move: 510 bps
	feed.SetPrice(d("2102"))
	_, err = a.Observe(context.Background())
	require.ErrorIs(t, err, ErrExcessiveDeviation)
	require.True(t, a.State().Paused)

	// paused rejects everything until an explicit unpause
	feed.SetPrice(d("2000"))
	_, err = a.Observe(context.Background())
	require.ErrorIs(t, err, ErrPaused)

	require.NoError(t, a.Unpause(context.Background()))
	_, err = a.Observe(context.Background())
	require.NoError(t, err)
}

func TestObserveDeviationWithoutBreaker(t *testing.T) {
	feed := NewStaticFeed()
	feed.SetPrice(d("2000"))
	a := newAdapter(t, feed, false)
	_, err := a.Observe(context.Background())
	require.NoError(t, err)

	feed.SetPrice(d("2500"))
	_, err = a.Observe(context.Background())
	require.ErrorIs(t, err, ErrExcessiveDeviation)
	require.False(t, a.State().Paused)

	// last accepted price is unchanged by the rejection
	require.True(t, a.State().LastPrice.Equal(d("2000")))
}

type blockingFeed struct{}

func (blockingFeed) LatestRound(ctx context.Context) (Round, error) {
	<-ctx.Done()
	return Round{}, ctx.Err()
}

func TestObserveTimeoutCountsAsStale(t *testing.T) {
	a, err := NewAdapter(context.Background(), blockingFeed{}, NewMemStateStore(), nil, 10*time.Millisecond, 300, 500, true)
	require.NoError(t, err)

	_, err = a.Observe(context.Background())
	require.ErrorIs(t, err, ErrStalePrice)
}

func TestAdapterLoadsPersistedState(t *testing.T) {
	store := NewMemStateStore()
	require.NoError(t, store.Save(context.Background(), State{
		LastPrice:        d("1900"),
		StalenessSeconds: 60,
		MaxDeviationBps:  100,
		CircuitBreaker:   true,
		Paused:           true,
	}))
	feed := NewStaticFeed()
	feed.SetPrice(d("1900"))

	a, err := NewAdapter(context.Background(), feed, store, nil, time.Second, 300, 500, false)
	require.NoError(t, err)
	// persisted state wins over constructor defaults
	require.Equal(t, int64(60), a.State().StalenessSeconds)
	_, err = a.Observe(context.Background())
	require.ErrorIs(t, err, ErrPaused)
}

func TestSetThresholds(t *testing.T) {
	feed := NewStaticFeed()
	feed.SetPrice(d("2000"))
	a := newAdapter(t, feed, true)

	require.Error(t, a.SetThresholds(context.Background(), 0, 500, true))
	require.NoError(t, a.SetThresholds(context.Background(), 60, 1000, false))
	st := a.State()
	require.Equal(t, int64(60), st.StalenessSeconds)
	require.Equal(t, int64(1000), st.MaxDeviationBps)
	require.False(t, st.CircuitBreaker)
}
