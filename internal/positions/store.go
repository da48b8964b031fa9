package positions

import (
	"context"
	"errors"
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/model"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("position not found")
	ErrVersionConflict = errors.New("position was modified concurrently")
)

// Store persists positions in an append-only, monotonically keyed table.
// Update and Delete are guarded by the optimistic version counter: the
// caller names the version it read and loses cleanly on a mismatch.
// NextMarker advances the venue-wide step sequence; every admitted
// mutation claims one step, which is what the minimum-hold guard counts.
type Store interface {
	NextMarker(ctx context.Context) (int64, error)
	Create(ctx context.Context, p model.Position) (model.Position, error)
	Get(ctx context.Context, id int64) (model.Position, error)
	ListByOwner(ctx context.Context, owner string) ([]model.Position, error)
	ListOpen(ctx context.Context, limit int) ([]model.Position, error)
	Update(ctx context.Context, p model.Position) error
	Delete(ctx context.Context, id, version int64) error
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const positionColumns = "id, owner, collateral_asset, collateral, notional, entry_price, leverage, direction, opened_at, open_marker, version"

func (s *PgStore) NextMarker(ctx context.Context) (int64, error) {
	var marker int64
	err := s.pool.QueryRow(ctx, "select nextval('risk_step_seq')").Scan(&marker)
	return marker, err
}

func (s *PgStore) Create(ctx context.Context, p model.Position) (model.Position, error) {
	err := s.pool.QueryRow(ctx, "insert into positions (owner, collateral_asset, collateral, notional, entry_price, leverage, direction, opened_at, open_marker, version) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,1) returning id, version", p.Owner, p.CollateralAsset, p.Collateral, p.Notional, p.EntryPrice, p.Leverage, string(p.Direction), p.OpenedAt, p.OpenMarker).Scan(&p.ID, &p.Version)
	return p, err
}

func (s *PgStore) Get(ctx context.Context, id int64) (model.Position, error) {
	row := s.pool.QueryRow(ctx, "select "+positionColumns+" from positions where id = $1", id)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Position{}, ErrNotFound
	}
	return p, err
}

func (s *PgStore) ListByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, "select "+positionColumns+" from positions where owner = $1 order by id asc", owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (s *PgStore) ListOpen(ctx context.Context, limit int) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, "select "+positionColumns+" from positions order by id asc limit $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (s *PgStore) Update(ctx context.Context, p model.Position) error {
	tag, err := s.pool.Exec(ctx, "update positions set collateral = $1, notional = $2, version = version + 1 where id = $3 and version = $4", p.Collateral, p.Notional, p.ID, p.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrMissing(ctx, p.ID)
	}
	return nil
}

func (s *PgStore) Delete(ctx context.Context, id, version int64) error {
	tag, err := s.pool.Exec(ctx, "delete from positions where id = $1 and version = $2", id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrMissing(ctx, id)
	}
	return nil
}

func (s *PgStore) conflictOrMissing(ctx context.Context, id int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, "select exists(select 1 from positions where id = $1)", id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrVersionConflict
	}
	return ErrNotFound
}

func scanPosition(row pgx.Row) (model.Position, error) {
	var p model.Position
	var direction string
	var openedAt time.Time
	err := row.Scan(&p.ID, &p.Owner, &p.CollateralAsset, &p.Collateral, &p.Notional, &p.EntryPrice, &p.Leverage, &direction, &openedAt, &p.OpenMarker, &p.Version)
	if err != nil {
		return p, err
	}
	p.Direction = types.Direction(direction)
	p.OpenedAt = openedAt.UTC()
	return p, nil
}

func scanPositions(rows pgx.Rows) ([]model.Position, error) {
	var out []model.Position
	for rows.Next() {
		var p model.Position
		var direction string
		var openedAt time.Time
		if err := rows.Scan(&p.ID, &p.Owner, &p.CollateralAsset, &p.Collateral, &p.Notional, &p.EntryPrice, &p.Leverage, &direction, &openedAt, &p.OpenMarker, &p.Version); err != nil {
			return nil, err
		}
		p.Direction = types.Direction(direction)
		p.OpenedAt = openedAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
