package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag/internal/domain"
	"legalrag/internal/embedding/bm25"
	"legalrag/internal/embedding/tfidf"
	"legalrag/internal/logger"
	"legalrag/internal/vectorstore/memory"
)

func corpus() []domain.Chunk {
	mk := func(source, para, content string) domain.Chunk {
		return domain.Chunk{Content: content, Metadata: domain.ChunkMetadata{Source: source, ParaID: para}}
	}
	return []domain.Chunk{
		mk("Auda v State.txt", "[Para 1]", "The appellant was convicted of armed robbery."),
		mk("Auda v State.txt", "[Para 2]", "The court dismissed the appeal for want of evidence."),
		mk("Bello v Ojo.txt", "[Para 4]", "Damages for breach of contract were awarded to the plaintiff."),
	}
}

// flakyEmbedder fails on any text containing a marker.
type flakyEmbedder struct {
	*tfidf.Embedder
	marker string
}

func (f flakyEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.Contains(text, f.marker) {
		return nil, errors.New("embedding backend unavailable")
	}
	return f.Embedder.Embed(ctx, text)
}

type countingStore struct {
	*memory.Storage
	inits   []int
	batches int
}

func (c *countingStore) Init(ctx context.Context, dim int) error {
	c.inits = append(c.inits, dim)
	return c.Storage.Init(ctx, dim)
}

func (c *countingStore) Upsert(ctx context.Context, records []domain.Record) error {
	c.batches++
	return c.Storage.Upsert(ctx, records)
}

func TestIndexService(t *testing.T) {
	ctx := t.Context()
	chunks := corpus()

	t.Run("Should ingest and retrieve by hybrid score", func(t *testing.T) {
		emb := tfidf.NewEmbedder()
		store := &countingStore{Storage: memory.NewStorage()}
		svc := NewIndexService(emb, bm25.New(0, 0), store, logger.Discard(), Options{BatchSize: 2, Contextualize: true, Alpha: 0.7})
		require.NoError(t, svc.Prepare(chunks))

		n, err := svc.Ingest(ctx, chunks)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 2, store.batches)
		assert.Equal(t, []int{emb.Dimension()}, store.inits)

		res, err := svc.Query(ctx, "damages for breach of contract", 0)
		require.NoError(t, err)
		require.Len(t, res, 3)
		assert.Equal(t, "Bello_v_Ojo_2", res[0].ID)
		assert.Equal(t, "[Para 4]", res[0].Chunk.Metadata.ParaID)
		assert.Greater(t, res[0].Score, res[1].Score)

		res, err = svc.Query(ctx, "robbery", 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "Auda_v_State_0", res[0].ID)

		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Points)
	})

	t.Run("Should skip chunks that fail to embed", func(t *testing.T) {
		emb := flakyEmbedder{Embedder: tfidf.NewEmbedder(), marker: "dismissed"}
		store := memory.NewStorage()
		svc := NewIndexService(emb, bm25.New(0, 0), store, logger.Discard(), DefaultOptions())
		require.NoError(t, svc.Prepare(chunks))
		n, err := svc.Ingest(ctx, chunks)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("Should keep loaded sparse statistics", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bm25.json")
		fitted := bm25.New(0, 0)
		require.NoError(t, fitted.Fit([]string{"only one document about bail"}))
		require.NoError(t, fitted.Save(path))

		loaded := bm25.New(0, 0)
		require.NoError(t, loaded.Load(path))
		svc := NewIndexService(tfidf.NewEmbedder(), loaded, memory.NewStorage(), logger.Discard(), DefaultOptions())
		require.NoError(t, svc.Prepare(chunks))
		assert.Equal(t, fitted.EncodeQuery("bail"), loaded.EncodeQuery("bail"))
	})

	t.Run("Should encode plain content when contextualization is off", func(t *testing.T) {
		svc := NewIndexService(tfidf.NewEmbedder(), bm25.New(0, 0), memory.NewStorage(), logger.Discard(), Options{})
		assert.Equal(t, chunks[0].Content, svc.DocumentText(chunks[0]))
		svc = NewIndexService(tfidf.NewEmbedder(), bm25.New(0, 0), memory.NewStorage(), logger.Discard(), DefaultOptions())
		assert.Equal(t, "Source: Auda v State.txt | "+chunks[0].Content, svc.DocumentText(chunks[0]))
	})

	t.Run("Should reinitialise the store after a clear", func(t *testing.T) {
		emb := tfidf.NewEmbedder()
		store := &countingStore{Storage: memory.NewStorage()}
		svc := NewIndexService(emb, bm25.New(0, 0), store, logger.Discard(), DefaultOptions())
		require.NoError(t, svc.Prepare(chunks))
		_, err := svc.Ingest(ctx, chunks)
		require.NoError(t, err)
		require.NoError(t, svc.Clear(ctx))
		_, err = svc.Ingest(ctx, chunks[:1])
		require.NoError(t, err)
		assert.Len(t, store.inits, 2)
		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Points)
	})

	t.Run("Should refuse an empty corpus", func(t *testing.T) {
		svc := NewIndexService(tfidf.NewEmbedder(), bm25.New(0, 0), memory.NewStorage(), logger.Discard(), DefaultOptions())
		assert.Error(t, svc.Prepare(nil))
	})

	t.Run("Should stop on cancellation", func(t *testing.T) {
		emb := tfidf.NewEmbedder()
		svc := NewIndexService(emb, bm25.New(0, 0), memory.NewStorage(), logger.Discard(), DefaultOptions())
		require.NoError(t, svc.Prepare(chunks))
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		n, err := svc.Ingest(cctx, chunks)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, n)
	})
}
