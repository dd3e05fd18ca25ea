package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag/internal/domain"
	"legalrag/internal/vectorstore"
)

type fakePoint struct {
	ID     string `json:"id"`
	Vector struct {
		Dense  []float64           `json:"dense"`
		Sparse domain.SparseVector `json:"sparse"`
	} `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the handful of REST endpoints the client uses.
type fakeQdrant struct {
	mu      sync.Mutex
	size    int
	exists  bool
	creates int
	deletes int
	points  map[string]fakePoint
	apiKeys []string
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{points: make(map[string]fakePoint)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
		if !f.exists {
			http.Error(w, `{"status":{"error":"not found"}}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"points_count": len(f.points),
			"config": map[string]any{"params": map[string]any{
				"vectors": map[string]any{"dense": map[string]any{"size": f.size, "distance": "Dot"}},
			}},
		}})
	})
	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Vectors map[string]struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
			SparseVectors map[string]any `json:"sparse_vectors"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Dot", body.Vectors["dense"].Distance)
		assert.Contains(t, body.SparseVectors, "sparse")
		f.mu.Lock()
		defer f.mu.Unlock()
		f.exists, f.size = true, body.Vectors["dense"].Size
		f.creates++
		_, _ = w.Write([]byte(`{"result":true}`))
	})
	mux.HandleFunc("DELETE /collections/{name}", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.exists = false
		f.points = make(map[string]fakePoint)
		f.deletes++
		_, _ = w.Write([]byte(`{"result":true}`))
	})
	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		var body struct {
			Points []fakePoint `json:"points"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, p := range body.Points {
			f.points[p.ID] = p
		}
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Vector struct {
				Name   string          `json:"name"`
				Vector json.RawMessage `json:"vector"`
			} `json:"vector"`
			Limit int `json:"limit"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		defer f.mu.Unlock()
		type hit struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		var hits []hit
		for _, p := range f.points {
			var score float64
			if body.Vector.Name == "dense" {
				var q []float64
				assert.NoError(t, json.Unmarshal(body.Vector.Vector, &q))
				score = vectorstore.Dot(p.Vector.Dense, q)
			} else {
				var q domain.SparseVector
				assert.NoError(t, json.Unmarshal(body.Vector.Vector, &q))
				score = vectorstore.SparseDot(p.Vector.Sparse, q)
				if score == 0 {
					continue
				}
			}
			hits = append(hits, hit{Score: score, Payload: p.Payload})
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > body.Limit {
			hits = hits[:body.Limit]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": hits})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func testRecord(id string, dense []float64, idx []uint32, vals []float64) domain.Record {
	return domain.Record{
		ID:          id,
		Chunk:       domain.Chunk{Content: "content of " + id, Metadata: domain.ChunkMetadata{Source: id + ".txt", ParaID: "[Para 2]"}},
		ContextText: "Source: " + id + ".txt | content of " + id,
		Dense:       dense,
		Sparse:      domain.SparseVector{Indices: idx, Values: vals},
	}
}

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, PointID("Auda_v_State_0"), PointID("Auda_v_State_0"))
	assert.NotEqual(t, PointID("Auda_v_State_0"), PointID("Auda_v_State_1"))
	assert.Len(t, PointID("x"), 36)
}

func TestStorage(t *testing.T) {
	ctx := t.Context()
	fake, srv := newFakeQdrant(t)
	s := NewStorage(Config{URL: srv.URL, APIKey: "k", Collection: "legal"})

	require.Error(t, s.Upsert(ctx, []domain.Record{testRecord("a", []float64{1}, nil, nil)}), "not initialized")

	t.Run("Should create the collection once", func(t *testing.T) {
		require.NoError(t, s.Init(ctx, 2))
		require.NoError(t, s.Init(ctx, 2))
		assert.Equal(t, 1, fake.creates)
		assert.Equal(t, 0, fake.deletes)
		assert.Contains(t, fake.apiKeys, "k")
	})

	t.Run("Should store payload and search both legs", func(t *testing.T) {
		require.NoError(t, s.Upsert(ctx, []domain.Record{
			testRecord("dense", []float64{1, 0}, nil, nil),
			testRecord("sparse", []float64{0, 1}, []uint32{3, 9}, []float64{1, 4}),
		}))
		p := fake.points[PointID("dense")]
		assert.Equal(t, "dense.txt", p.Payload["source"])
		assert.Equal(t, "[Para 2]", p.Payload["para_id"])
		assert.Equal(t, "dense", p.Payload["vector_id"])
		assert.Equal(t, "Source: dense.txt | content of dense", p.Payload["context_text"])

		q := domain.HybridQuery{
			Dense:  []float64{1, 0},
			Sparse: domain.SparseVector{Indices: []uint32{9}, Values: []float64{1}},
			Alpha:  0.7,
			TopK:   5,
		}
		res, err := s.Search(ctx, q)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "sparse", res[0].ID)
		assert.InDelta(t, 0.3*4, res[0].Score, 1e-9)
		assert.Equal(t, "dense", res[1].ID)
		assert.InDelta(t, 0.7, res[1].Score, 1e-9)
		assert.Equal(t, "content of dense", res[1].Chunk.Content)

		q.TopK = 1
		q.Alpha = 0.9
		res, err = s.Search(ctx, q)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "dense", res[0].ID)
	})

	t.Run("Should report stats", func(t *testing.T) {
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.IndexStats{Points: 2, Dimension: 2}, stats)
	})

	t.Run("Should reject vectors of the wrong size", func(t *testing.T) {
		assert.Error(t, s.Upsert(ctx, []domain.Record{testRecord("bad", []float64{1, 2, 3}, nil, nil)}))
	})

	t.Run("Should recreate on dimension change", func(t *testing.T) {
		require.NoError(t, s.Init(ctx, 3))
		assert.Equal(t, 1, fake.deletes)
		assert.Equal(t, 2, fake.creates)
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.IndexStats{Points: 0, Dimension: 3}, stats)
	})

	t.Run("Should tolerate clearing twice", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Clear(ctx))
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats)
	})
}

func TestStorageSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	s := NewStorage(Config{URL: srv.URL, Collection: "legal"})
	err := s.Init(t.Context(), 4)
	assert.ErrorContains(t, err, "500")
	assert.ErrorContains(t, err, "boom")
}
