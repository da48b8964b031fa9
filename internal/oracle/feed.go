package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Round is one raw upstream report. Answer carries the feed's own scale;
// Decimals says how many fractional digits it encodes.
type Round struct {
	Answer    decimal.Decimal
	Decimals  int32
	RoundID   int64
	UpdatedAt time.Time
}

// Feed is the single upstream price source consumed by the Adapter.
type Feed interface {
	LatestRound(ctx context.Context) (Round, error)
}

// HTTPFeed polls a JSON endpoint shaped like a Chainlink round:
// {"answer":"193245000000","decimals":8,"round_id":42,"updated_at":1718000000}.
type HTTPFeed struct {
	url    string
	client *http.Client
}

func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{url: url, client: &http.Client{Timeout: timeout}}
}

type httpRound struct {
	Answer    string `json:"answer"`
	Decimals  int32  `json:"decimals"`
	RoundID   int64  `json:"round_id"`
	UpdatedAt int64  `json:"updated_at"`
}

func (f *HTTPFeed) LatestRound(ctx context.Context) (Round, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Round{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Round{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Round{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	var raw httpRound
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Round{}, err
	}
	answer, err := decimal.NewFromString(raw.Answer)
	if err != nil {
		return Round{}, fmt.Errorf("bad feed answer: %w", err)
	}
	return Round{
		Answer:    answer,
		Decimals:  raw.Decimals,
		RoundID:   raw.RoundID,
		UpdatedAt: time.Unix(raw.UpdatedAt, 0).UTC(),
	}, nil
}

// StaticFeed serves an operator-set round. Paper mode wires it behind an
// internal endpoint; tests drive it directly.
type StaticFeed struct {
	mu    sync.Mutex
	round Round
	set   bool
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{}
}

func (f *StaticFeed) SetRound(r Round) {
	f.mu.Lock()
	f.round = r
	f.set = true
	f.mu.Unlock()
}

// SetPrice is a convenience for an already-normalized price stamped now.
func (f *StaticFeed) SetPrice(price decimal.Decimal) {
	f.mu.Lock()
	f.round = Round{Answer: price, Decimals: 0, RoundID: f.round.RoundID + 1, UpdatedAt: time.Now().UTC()}
	f.set = true
	f.mu.Unlock()
}

func (f *StaticFeed) LatestRound(ctx context.Context) (Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		return Round{}, errors.New("no round set")
	}
	return f.round, nil
}
