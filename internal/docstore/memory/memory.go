// Package memory is an in-process DocumentStore.
package memory

import (
	"context"
	"sort"
	"sync"

	"ragcore/internal/domain"
)

type key struct{ id, name string }

type Store struct {
	mu   sync.RWMutex
	docs map[key]domain.Document
}

var _ domain.DocumentStore = (*Store)(nil)

func New() *Store { return &Store{docs: make(map[key]domain.Document)} }

func (s *Store) Put(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key{doc.ID, doc.Name}] = doc
	return nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.docs)
	return nil
}

// All returns the documents ordered by doc_id, then name.
func (s *Store) All(context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
