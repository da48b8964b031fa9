package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the fractional precision every accepted price is
// normalized to before any downstream math sees it.
const PriceScale = 18

var (
	ErrStalePrice         = errors.New("stale price")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrExcessiveDeviation = errors.New("excessive price deviation")
	ErrPaused             = errors.New("oracle paused")
)

var bpsFactor = decimal.NewFromInt(10000)

// Observation is a validated, normalized price. Only Observe produces
// these; nothing downstream is allowed to value a position against a
// cached one.
type Observation struct {
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
	RoundID    int64           `json:"round_id"`
}

type State struct {
	LastPrice        decimal.Decimal `json:"last_price"`
	LastAcceptedAt   time.Time       `json:"last_accepted_at"`
	StalenessSeconds int64           `json:"staleness_seconds"`
	MaxDeviationBps  int64           `json:"max_deviation_bps"`
	CircuitBreaker   bool            `json:"circuit_breaker"`
	Paused           bool            `json:"paused"`
}

// Adapter wraps the upstream feed and refuses to hand out a price that
// is stale, non-positive, or an implausible jump from the last accepted
// one. A rejected jump trips the circuit breaker into paused when
// enabled, and paused stays until an admin unpause.
type Adapter struct {
	mu      sync.Mutex
	feed    Feed
	store   StateStore
	bus     *Bus
	timeout time.Duration
	state   State
}

func NewAdapter(ctx context.Context, feed Feed, store StateStore, bus *Bus, timeout time.Duration, stalenessSeconds, maxDeviationBps int64, circuitBreaker bool) (*Adapter, error) {
	a := &Adapter{
		feed:    feed,
		store:   store,
		bus:     bus,
		timeout: timeout,
		state: State{
			StalenessSeconds: stalenessSeconds,
			MaxDeviationBps:  maxDeviationBps,
			CircuitBreaker:   circuitBreaker,
		},
	}
	saved, found, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		a.state = saved
	} else if err := store.Save(ctx, a.state); err != nil {
		return nil, err
	}
	return a, nil
}

// Observe fetches, validates and records one upstream round. The upstream
// call is bounded by the configured timeout; a timeout counts as stale.
func (a *Adapter) Observe(ctx context.Context) (Observation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Paused {
		return Observation{}, ErrPaused
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	round, err := a.feed.LatestRound(callCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Observation{}, fmt.Errorf("%w: upstream timeout", ErrStalePrice)
		}
		return Observation{}, fmt.Errorf("feed call failed: %w", err)
	}
	now := time.Now().UTC()
	if now.Sub(round.UpdatedAt) > time.Duration(a.state.StalenessSeconds)*time.Second {
		return Observation{}, fmt.Errorf("%w: round updated at %s", ErrStalePrice, round.UpdatedAt.Format(time.RFC3339))
	}
	price := round.Answer.Shift(-round.Decimals).Truncate(PriceScale)
	if price.LessThanOrEqual(decimal.Zero) {
		return Observation{}, ErrInvalidPrice
	}
	if a.state.LastPrice.IsPositive() {
		deviationBps := price.Sub(a.state.LastPrice).Abs().Mul(bpsFactor).DivRound(a.state.LastPrice, PriceScale)
		if deviationBps.GreaterThan(decimal.NewFromInt(a.state.MaxDeviationBps)) {
			if a.state.CircuitBreaker {
				a.state.Paused = true
				if err := a.store.Save(ctx, a.state); err != nil {
					return Observation{}, err
				}
			}
			return Observation{}, fmt.Errorf("%w: %s bps", ErrExcessiveDeviation, deviationBps.Round(2))
		}
	}
	a.state.LastPrice = price
	a.state.LastAcceptedAt = now
	if err := a.store.Save(ctx, a.state); err != nil {
		return Observation{}, err
	}
	obs := Observation{Price: price, ObservedAt: now, RoundID: round.RoundID}
	if a.bus != nil {
		a.bus.Publish(Event{Type: "price", Data: obs})
	}
	return obs, nil
}

// State returns a snapshot for read endpoints; it never touches the feed.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) SetThresholds(ctx context.Context, stalenessSeconds, maxDeviationBps int64, circuitBreaker bool) error {
	if stalenessSeconds <= 0 || maxDeviationBps <= 0 {
		return errors.New("thresholds must be positive")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.StalenessSeconds = stalenessSeconds
	a.state.MaxDeviationBps = maxDeviationBps
	a.state.CircuitBreaker = circuitBreaker
	return a.store.Save(ctx, a.state)
}

func (a *Adapter) Pause(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Paused = true
	return a.store.Save(ctx, a.state)
}

func (a *Adapter) Unpause(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Paused = false
	return a.store.Save(ctx, a.state)
}
