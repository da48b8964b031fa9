package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StateStore persists the single OracleState record.
type StateStore interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, s State) error
}

type PgStateStore struct {
	pool *pgxpool.Pool
}

func NewPgStateStore(pool *pgxpool.Pool) *PgStateStore {
	return &PgStateStore{pool: pool}
}

func (s *PgStateStore) Load(ctx context.Context) (State, bool, error) {
	var st State
	var lastAcceptedAt *time.Time
	err := s.pool.QueryRow(ctx, "select last_price, last_accepted_at, staleness_seconds, max_deviation_bps, circuit_breaker, paused from oracle_state where id = 1").Scan(&st.LastPrice, &lastAcceptedAt, &st.StalenessSeconds, &st.MaxDeviationBps, &st.CircuitBreaker, &st.Paused)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	if lastAcceptedAt != nil {
		st.LastAcceptedAt = lastAcceptedAt.UTC()
	}
	return st, true, nil
}

func (s *PgStateStore) Save(ctx context.Context, st State) error {
	var lastAcceptedAt *time.Time
	if !st.LastAcceptedAt.IsZero() {
		t := st.LastAcceptedAt.UTC()
		lastAcceptedAt = &t
	}
	_, err := s.pool.Exec(ctx, "insert into oracle_state (id, last_price, last_accepted_at, staleness_seconds, max_deviation_bps, circuit_breaker, paused, updated_at) values (1, $1, $2, $3, $4, $5, $6, $7) on conflict (id) do update set last_price = $1, last_accepted_at = $2, staleness_seconds = $3, max_deviation_bps = $4, circuit_breaker = $5, paused = $6, updated_at = $7", st.LastPrice, lastAcceptedAt, st.StalenessSeconds, st.MaxDeviationBps, st.CircuitBreaker, st.Paused, time.Now().UTC())
	return err
}

type MemStateStore struct {
	mu    sync.Mutex
	state State
	set   bool
}

func NewMemStateStore() *MemStateStore {
	return &MemStateStore{}
}

func (s *MemStateStore) Load(ctx context.Context) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.set, nil
}

func (s *MemStateStore) Save(ctx context.Context, st State) error {
	s.mu.Lock()
	s.state = st
	s.set = true
	s.mu.Unlock()
	return nil
}
