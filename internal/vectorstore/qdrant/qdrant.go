package qdrant

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"legalrag/internal/domain"
	"legalrag/internal/vectorstore"
)

const (
	denseVector  = "dense"
	sparseVector = "sparse"
	// each leg fetches this many candidates per requested result before merging
	candidateFactor = 4
)

var errNotFound = errors.New("qdrant: not found")

// Storage is a minimal REST client to Qdrant.
// The collection carries a named dense vector (dot product) and a named sparse vector.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID maps a record id onto the UUID Qdrant stores it under.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

type collectionInfo struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors map[string]struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func (s *Storage) info(ctx context.Context) (collectionInfo, error) {
	var info collectionInfo
	err := s.do(ctx, http.MethodGet, s.collectionPath(), nil, &info)
	return info, err
}

// Init creates the collection, recreating it when the stored dense dimension differs.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	info, err := s.info(ctx)
	switch {
	case errors.Is(err, errNotFound):
	case err != nil:
		return err
	default:
		if info.Result.Config.Params.Vectors[denseVector].Size == dimension {
			s.dimension = dimension
			return nil
		}
		if err := s.do(ctx, http.MethodDelete, s.collectionPath(), nil, nil); err != nil {
			return fmt.Errorf("drop stale collection: %w", err)
		}
	}
	body := map[string]any{
		"vectors": map[string]any{
			denseVector: map[string]any{"size": dimension, "distance": "Dot"},
		},
		"sparse_vectors": map[string]any{
			sparseVector: map[string]any{},
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionPath(), body, nil); err != nil {
		return err
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if s.dimension == 0 {
		return errors.New("storage not initialized")
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		if len(r.Dense) != s.dimension {
			return fmt.Errorf("record %s: vector dimension mismatch", r.ID)
		}
		points[i] = map[string]any{
			"id": PointID(r.ID),
			"vector": map[string]any{
				denseVector:  r.Dense,
				sparseVector: sparsePayload(r.Sparse),
			},
			"payload": map[string]any{
				"text":         r.Chunk.Content,
				"context_text": r.ContextText,
				"source":       r.Chunk.Metadata.Source,
				"para_id":      r.Chunk.Metadata.ParaID,
				"vector_id":    r.ID,
			},
		}
	}
	return s.do(ctx, http.MethodPut, s.collectionPath()+"/points?wait=true", map[string]any{"points": points}, nil)
}

type searchHit struct {
	Score   float64 `json:"score"`
	Payload struct {
		Text     string `json:"text"`
		Source   string `json:"source"`
		ParaID   string `json:"para_id"`
		VectorID string `json:"vector_id"`
	} `json:"payload"`
}

// Search runs a dense and a sparse query and merges them by record id.
// A record missing from one leg scores zero on that leg.
func (s *Storage) Search(ctx context.Context, q domain.HybridQuery) ([]domain.SearchResult, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	limit := topK * candidateFactor
	dense, err := s.searchLeg(ctx, map[string]any{"name": denseVector, "vector": q.Dense}, limit)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	var sparse []searchHit
	if len(q.Sparse.Indices) > 0 {
		sparse, err = s.searchLeg(ctx, map[string]any{"name": sparseVector, "vector": sparsePayload(q.Sparse)}, limit)
		if err != nil {
			return nil, fmt.Errorf("sparse search: %w", err)
		}
	}

	type legs struct {
		hit           searchHit
		dense, sparse float64
	}
	merged := make(map[string]*legs)
	var order []string
	add := func(h searchHit) *legs {
		l, ok := merged[h.Payload.VectorID]
		if !ok {
			l = &legs{hit: h}
			merged[h.Payload.VectorID] = l
			order = append(order, h.Payload.VectorID)
		}
		return l
	}
	for _, h := range dense {
		add(h).dense = h.Score
	}
	for _, h := range sparse {
		add(h).sparse = h.Score
	}

	results := make([]domain.SearchResult, 0, len(order))
	for _, id := range order {
		l := merged[id]
		results = append(results, domain.SearchResult{
			ID: id,
			Chunk: domain.Chunk{
				Content:  l.hit.Payload.Text,
				Metadata: domain.ChunkMetadata{Source: l.hit.Payload.Source, ParaID: l.hit.Payload.ParaID},
			},
			Score: vectorstore.HybridScore(q.Alpha, l.dense, l.sparse),
		})
	}
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) searchLeg(ctx context.Context, vector map[string]any, limit int) ([]searchHit, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []searchHit `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (s *Storage) Stats(ctx context.Context) (domain.IndexStats, error) {
	info, err := s.info(ctx)
	if errors.Is(err, errNotFound) {
		return domain.IndexStats{}, nil
	}
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		Points:    info.Result.PointsCount,
		Dimension: info.Result.Config.Params.Vectors[denseVector].Size,
	}, nil
}

// Clear drops the collection. A missing collection is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionPath(), nil, nil)
	if errors.Is(err, errNotFound) {
		err = nil
	}
	if err == nil {
		s.dimension = 0
	}
	return err
}

func (s *Storage) collectionPath() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func sparsePayload(v domain.SparseVector) map[string]any {
	indices := v.Indices
	if indices == nil {
		indices = []uint32{}
	}
	values := v.Values
	if values == nil {
		values = []float64{}
	}
	return map[string]any{"indices": indices, "values": values}
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
