package domain

import "context"

// ParaIDNotAvailable marks a block or chunk with no paragraph tag.
const ParaIDNotAvailable = "N/A"

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Block is a contiguous span of a document tied to at most one paragraph tag.
// Text is kept unnormalized.
type Block struct {
	Text   string
	ParaID string
}

// ChunkMetadata is attached to every chunk. The JSON field names are consumed
// by the embedding and retrieval side and must not change.
type ChunkMetadata struct {
	Source string `json:"source"`
	ParaID string `json:"para_id"`
}

// Chunk is a bounded-size fragment of a block, the unit handed to embedding.
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// SparseVector is a term-weight vector keyed by hashed term indices.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float64 `json:"values"`
}

// Record is a chunk ready for the vector index.
type Record struct {
	ID          string
	Chunk       Chunk
	ContextText string
	Dense       []float64
	Sparse      SparseVector
}

// HybridQuery weights the dense leg by Alpha and the sparse leg by 1-Alpha.
type HybridQuery struct {
	Dense  []float64
	Sparse SparseVector
	Alpha  float64
	TopK   int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	ID    string
	Chunk Chunk
	Score float64
}

// IndexStats summarizes the contents of a vector index.
type IndexStats struct {
	Points    int
	Dimension int
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SparseEncoder turns text into lexical term weights.
type SparseEncoder interface {
	Fit(corpus []string) error
	EncodeDocument(text string) SparseVector
	EncodeQuery(text string) SparseVector
}

// VectorStore persists records and answers hybrid similarity queries.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query HybridQuery) ([]SearchResult, error)
	Stats(ctx context.Context) (IndexStats, error)
	Clear(ctx context.Context) error
}

// ChunkSink receives chunk records one at a time.
type ChunkSink interface {
	Write(chunk Chunk) error
	Close() error
}
