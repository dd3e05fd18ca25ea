package service

import (
	"context"
	"errors"
	"fmt"

	"legalrag/internal/domain"
	"legalrag/internal/embedding"
	"legalrag/internal/logger"
	"legalrag/internal/vectorstore"
)

// Options tune ingestion and retrieval.
type Options struct {
	BatchSize     int
	Contextualize bool
	TopK          int
	Alpha         float64
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{BatchSize: 50, Contextualize: true, TopK: 5, Alpha: 0.7}
}

// fittable is implemented by sparse encoders whose statistics can be restored
// from disk instead of refitted.
type fittable interface {
	Fitted() bool
}

// IndexService embeds chunks into a vector store and answers hybrid queries.
type IndexService struct {
	embedder    domain.Embedder
	sparse      domain.SparseEncoder
	store       domain.VectorStore
	log         logger.Logger
	opts        Options
	initialized bool
}

func NewIndexService(embedder domain.Embedder, sparse domain.SparseEncoder, store domain.VectorStore, log logger.Logger, opts Options) *IndexService {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	return &IndexService{embedder: embedder, sparse: sparse, store: store, log: log, opts: opts}
}

// DocumentText is the text a chunk is encoded from.
func (s *IndexService) DocumentText(chunk domain.Chunk) string {
	if s.opts.Contextualize {
		return embedding.Contextualize(chunk)
	}
	return chunk.Content
}

// Prepare fits the embedder and, unless it already carries statistics, the
// sparse encoder on the corpus.
func (s *IndexService) Prepare(chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to index")
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = s.DocumentText(c)
	}
	if err := s.embedder.Prepare(texts); err != nil {
		return fmt.Errorf("prepare %s embedder: %w", s.embedder.Name(), err)
	}
	if f, ok := s.sparse.(fittable); ok && f.Fitted() {
		s.log.Debug("sparse encoder already fitted")
		return nil
	}
	if err := s.sparse.Fit(texts); err != nil {
		return fmt.Errorf("fit sparse encoder: %w", err)
	}
	return nil
}

// Ingest embeds and upserts chunks in batches and returns how many were stored.
// Chunks that fail to embed are logged and skipped.
func (s *IndexService) Ingest(ctx context.Context, chunks []domain.Chunk) (int, error) {
	stored := 0
	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(chunks))
		records := make([]domain.Record, 0, end-start)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return stored, err
			}
			chunk := chunks[i]
			text := s.DocumentText(chunk)
			dense, err := s.embedder.Embed(ctx, text)
			if err != nil {
				s.log.Warn("skipping chunk", "source", chunk.Metadata.Source, "index", i, "err", err)
				continue
			}
			records = append(records, domain.Record{
				ID:          vectorstore.RecordID(chunk.Metadata.Source, i),
				Chunk:       chunk,
				ContextText: text,
				Dense:       dense,
				Sparse:      s.sparse.EncodeDocument(text),
			})
		}
		if len(records) == 0 {
			continue
		}
		if !s.initialized {
			if err := s.store.Init(ctx, len(records[0].Dense)); err != nil {
				return stored, fmt.Errorf("init store: %w", err)
			}
			s.initialized = true
		}
		if err := s.store.Upsert(ctx, records); err != nil {
			return stored, fmt.Errorf("upsert batch at %d: %w", start, err)
		}
		stored += len(records)
		s.log.Info("upserted batch", "from", start, "to", end, "stored", stored)
	}
	return stored, nil
}

// Query runs a hybrid search. A non-positive topK uses the configured default.
func (s *IndexService) Query(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}
	dense, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.Search(ctx, domain.HybridQuery{
		Dense:  dense,
		Sparse: s.sparse.EncodeQuery(query),
		Alpha:  s.opts.Alpha,
		TopK:   topK,
	})
}

// Stats reports what the store currently holds.
func (s *IndexService) Stats(ctx context.Context) (domain.IndexStats, error) {
	return s.store.Stats(ctx)
}

// Clear empties the store; the next ingest initialises it again.
func (s *IndexService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	s.initialized = false
	return nil
}
