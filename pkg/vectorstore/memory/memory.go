// Package memory is an ephemeral vector store owned by a single session.
package memory

import (
	"context"
	"fmt"
	"sync"

	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/vectorstore"
)

// Store is a brute-force cosine similarity store.
type Store struct {
	mu        sync.RWMutex
	dimension int
	records   []store.Record
	byID      map[string]int
}

var _ vectorstore.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{byID: make(map[string]int)}
}

func (s *Store) Upsert(_ context.Context, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	for _, r := range records {
		if dim == 0 {
			dim = len(r.Embedding)
		}
		if len(r.Embedding) != dim || dim == 0 {
			return fmt.Errorf("%w: store has %d, got %d", vectorstore.ErrDimensionMismatch, dim, len(r.Embedding))
		}
	}
	s.dimension = dim

	for _, r := range records {
		if i, ok := s.byID[r.Chunk.ID]; ok {
			s.records[i] = r
			continue
		}
		s.byID[r.Chunk.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Store) Search(_ context.Context, query []float32, k int) ([]store.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return []store.ScoredChunk{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: store has %d, query has %d", vectorstore.ErrDimensionMismatch, s.dimension, len(query))
	}
	return vectorstore.TopK(s.records, query, k), nil
}

func (s *Store) Dimension(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Store) Close() error { return nil }
