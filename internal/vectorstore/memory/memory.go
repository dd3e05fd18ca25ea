package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"legalrag/internal/domain"
	"legalrag/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force hybrid scoring.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.Record
	index     map[string]int
}

func NewStorage() *Storage { return &Storage{index: make(map[string]int)} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != dimension {
		s.records = nil
		s.index = make(map[string]int)
	}
	s.dimension = dimension
	return nil
}

// Upsert replaces records with a known id and appends the rest.
func (s *Storage) Upsert(_ context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("storage not initialized")
	}
	for _, r := range records {
		if len(r.Dense) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, r := range records {
		if i, ok := s.index[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, q domain.HybridQuery) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(s.records))
	for i, r := range s.records {
		score := vectorstore.HybridScore(q.Alpha,
			vectorstore.Dot(r.Dense, q.Dense),
			vectorstore.SparseDot(r.Sparse, q.Sparse))
		results[i] = domain.SearchResult{ID: r.ID, Chunk: r.Chunk, Score: score}
	}
	// Stable so that ties keep insertion order
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Stats(context.Context) (domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.IndexStats{Points: len(s.records), Dimension: s.dimension}, nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[string]int)
	return nil
}
