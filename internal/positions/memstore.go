package positions

import (
	"context"
	"sort"
	"sync"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/model"
)

// MemStore backs paper mode and tests. The single mutex reproduces the
// reference model's serialized writes; versions behave exactly like the
// Postgres store's.
type MemStore struct {
	mu        sync.Mutex
	positions map[int64]model.Position
	nextID    int64
	marker    int64
}

func NewMemStore() *MemStore {
	return &MemStore{positions: make(map[int64]model.Position)}
}

func (s *MemStore) NextMarker(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker++
	return s.marker, nil
}

func (s *MemStore) Create(ctx context.Context, p model.Position) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	p.Version = 1
	s.positions[p.ID] = p
	return p, nil
}

func (s *MemStore) Get(ctx context.Context, id int64) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return model.Position{}, ErrNotFound
	}
	return p, nil
}

func (s *MemStore) ListByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Position
	for _, p := range s.positions {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListOpen(ctx context.Context, limit int) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Position
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) Update(ctx context.Context, p model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.positions[p.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != p.Version {
		return ErrVersionConflict
	}
	p.Version++
	s.positions[p.ID] = p
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.positions[id]
	if !ok {
		return ErrNotFound
	}
	if current.Version != version {
		return ErrVersionConflict
	}
	delete(s.positions, id)
	return nil
}
