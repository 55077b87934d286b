// Package memory is an in-process vector index using brute-force cosine
// similarity. A search that runs concurrently with an upsert sees either all
// or none of that upsert's points.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

type Storage struct {
	mu        sync.RWMutex
	exists    bool
	dimension int
	points    []domain.IndexedPoint
	byID      map[string]int
}

var _ domain.VectorIndex = (*Storage)(nil)

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) EnsureCollection(_ context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return domain.CheckDimension(s.dimension, dim)
	}
	s.create(dim)
	return nil
}

func (s *Storage) ResetCollection(_ context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.create(dim)
	return nil
}

func (s *Storage) create(dim int) {
	s.exists = true
	s.dimension = dim
	s.points = nil
	s.byID = make(map[string]int)
}

func (s *Storage) Upsert(_ context.Context, points []domain.IndexedPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return domain.ErrCollectionMissing
	}
	for _, p := range points {
		if err := domain.CheckDimension(s.dimension, len(p.Vector)); err != nil {
			return err
		}
	}
	for _, p := range points {
		if i, ok := s.byID[p.ID]; ok {
			s.points[i] = p
			continue
		}
		s.byID[p.ID] = len(s.points)
		s.points = append(s.points, p)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vec domain.Vector, opts domain.SearchOptions) ([]domain.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return nil, domain.ErrCollectionMissing
	}
	if err := domain.CheckDimension(s.dimension, len(vec)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.FromContext(err)
	}
	return vectorstore.Rank(s.points, vec, opts), nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return 0, domain.ErrCollectionMissing
	}
	return len(s.points), nil
}

func (s *Storage) Close() error { return nil }
