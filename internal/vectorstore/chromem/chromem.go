// Package chromem keeps the index in an embedded chromem-go database,
// optionally persisted to a directory, so that a local index outlives the
// process that built it.
package chromem

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"

	cg "github.com/philippgille/chromem-go"

	"legalrag/internal/domain"
	"legalrag/internal/vectorstore"
)

const (
	metaSource  = "source"
	metaParaID  = "para_id"
	metaContext = "context_text"
	metaSparse  = "sparse"
)

type Config struct {
	// Path is the persistence directory. Empty keeps the database in memory.
	Path       string
	Collection string
	Compress   bool
}

// Storage scores the dense leg with chromem's cosine similarity and the
// sparse leg from vectors kept in document metadata.
type Storage struct {
	mu        sync.Mutex
	db        *cg.DB
	name      string
	coll      *cg.Collection
	dimension int
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Collection == "" {
		return nil, errors.New("chromem: collection name required")
	}
	db := cg.NewDB()
	if cfg.Path != "" {
		var err error
		db, err = cg.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("chromem: open %s: %w", cfg.Path, err)
		}
	}
	return &Storage{db: db, name: cfg.Collection}, nil
}

// The collection name carries the dimension, e.g. "legal-d384".
func (s *Storage) collectionName(dimension int) string {
	return fmt.Sprintf("%s-d%d", s.name, dimension)
}

// existing finds a collection built by an earlier run and its dimension.
func (s *Storage) existing() (*cg.Collection, int) {
	prefix := s.name + "-d"
	for name, coll := range s.db.ListCollections() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if dim, err := strconv.Atoi(strings.TrimPrefix(name, prefix)); err == nil {
			return coll, dim
		}
	}
	return nil, 0
}

// Init opens the collection for dimension, dropping one built for another size.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if coll, dim := s.existing(); coll != nil && dim != dimension {
		if err := s.db.DeleteCollection(coll.Name); err != nil {
			return fmt.Errorf("chromem: drop stale collection: %w", err)
		}
	}
	coll, err := s.db.GetOrCreateCollection(s.collectionName(dimension), nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("chromem: open collection: %w", err)
	}
	s.coll, s.dimension = coll, dimension
	return nil
}

// noEmbedding is handed to chromem so it never embeds text on its own.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem: records must carry their embedding")
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coll == nil {
		return errors.New("storage not initialized")
	}
	docs := make([]cg.Document, len(records))
	for i, r := range records {
		if len(r.Dense) != s.dimension {
			return fmt.Errorf("record %s: vector dimension mismatch", r.ID)
		}
		sparse, err := json.Marshal(r.Sparse)
		if err != nil {
			return err
		}
		docs[i] = cg.Document{
			ID:      r.ID,
			Content: r.Chunk.Content,
			Metadata: map[string]string{
				metaSource:  r.Chunk.Metadata.Source,
				metaParaID:  r.Chunk.Metadata.ParaID,
				metaContext: r.ContextText,
				metaSparse:  string(sparse),
			},
			Embedding: toFloat32(r.Dense),
		}
	}
	return s.coll.AddDocuments(ctx, docs, runtime.NumCPU())
}

// Search scores every document; chromem is brute force, so the hybrid
// ranking is exact.
func (s *Storage) Search(ctx context.Context, q domain.HybridQuery) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	if s.coll == nil {
		// A fresh process searches whatever an earlier run persisted.
		s.coll, s.dimension = s.existing()
	}
	if s.coll == nil || s.coll.Count() == 0 {
		return nil, nil
	}
	query, denseLeg := toFloat32(q.Dense), true
	if isZero(q.Dense) {
		// chromem normalizes the query; search with a unit vector and drop the dense leg.
		query = make([]float32, s.dimension)
		query[0] = 1
		denseLeg = false
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), s.dimension)
	}
	hits, err := s.coll.QueryEmbedding(ctx, query, s.coll.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		var sparse domain.SparseVector
		if err := json.Unmarshal([]byte(h.Metadata[metaSparse]), &sparse); err != nil {
			return nil, fmt.Errorf("chromem: record %s: decode sparse vector: %w", h.ID, err)
		}
		dense := float64(h.Similarity)
		if !denseLeg || math.IsNaN(dense) {
			dense = 0
		}
		results = append(results, domain.SearchResult{
			ID: h.ID,
			Chunk: domain.Chunk{
				Content:  h.Content,
				Metadata: domain.ChunkMetadata{Source: h.Metadata[metaSource], ParaID: h.Metadata[metaParaID]},
			},
			Score: vectorstore.HybridScore(q.Alpha, dense, vectorstore.SparseDot(sparse, q.Sparse)),
		})
	}
	slices.SortFunc(results, func(a, b domain.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) Stats(context.Context) (domain.IndexStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, dim := s.coll, s.dimension
	if coll == nil {
		coll, dim = s.existing()
	}
	if coll == nil {
		return domain.IndexStats{}, nil
	}
	return domain.IndexStats{Points: coll.Count(), Dimension: dim}, nil
}

// Clear drops the collection, persisted files included.
func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for coll, _ := s.existing(); coll != nil; coll, _ = s.existing() {
		if err := s.db.DeleteCollection(coll.Name); err != nil {
			return fmt.Errorf("chromem: drop collection: %w", err)
		}
	}
	s.coll, s.dimension = nil, 0
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
