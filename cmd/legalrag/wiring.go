package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"legalrag/internal/config"
	"legalrag/internal/corpus"
	"legalrag/internal/domain"
	"legalrag/internal/embedding/bm25"
	"legalrag/internal/embedding/openai"
	"legalrag/internal/embedding/tfidf"
	"legalrag/internal/logger"
	"legalrag/internal/service"
	"legalrag/internal/vectorstore"
	"legalrag/internal/vectorstore/chromem"
	"legalrag/internal/vectorstore/memory"
	"legalrag/internal/vectorstore/qdrant"
)

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}), nil
	case "chromem":
		c := cfg.VectorStore.Chromem
		if c == nil {
			return nil, errors.New("chromem config missing")
		}
		store, err := chromem.NewStorage(chromem.Config{Path: c.Path, Collection: c.Collection, Compress: c.Compress})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

// buildSparse returns a BM25 encoder, restored from the params file when
// loadParams is set and the file exists.
func buildSparse(cfg *config.AppConfig, log logger.Logger, loadParams bool) (*bm25.Encoder, error) {
	if cfg.Sparse.Type != "bm25" {
		return nil, fmt.Errorf("unknown sparse encoder: %s", cfg.Sparse.Type)
	}
	enc := bm25.New(cfg.Sparse.K1, cfg.Sparse.B)
	if !loadParams {
		return enc, nil
	}
	err := enc.Load(cfg.Sparse.ParamsFile)
	switch {
	case err == nil:
		log.Info("loaded bm25 params", "path", cfg.Sparse.ParamsFile)
	case errors.Is(err, os.ErrNotExist):
		log.Warn("bm25 params not found, fitting on the chunk file", "path", cfg.Sparse.ParamsFile)
	default:
		return nil, err
	}
	return enc, nil
}

func buildService(cfg *config.AppConfig, log logger.Logger, sparse domain.SparseEncoder) (*service.IndexService, error) {
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("components ready", "embedder", emb.Name(), "store", cfg.VectorStore.Type)
	return service.NewIndexService(emb, sparse, store, log, service.Options{
		BatchSize:     cfg.VectorStore.BatchSize,
		Contextualize: cfg.Embedder.Contextualize,
		TopK:          cfg.Search.TopK,
		Alpha:         cfg.Search.Alpha,
	}), nil
}

func loadChunkFile(path string) ([]domain.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunk file: %w", err)
	}
	defer f.Close()
	chunks, err := corpus.LoadChunks(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: no chunks; run the chunk command first", path)
	}
	return chunks, nil
}
