package chunker

import (
	"errors"
	"iter"

	"legalrag/internal/domain"
)

// DefaultMaxChars is the character budget per chunk.
const DefaultMaxChars = 1200

// ErrInvalidMaxChars is returned for a non-positive character budget.
var ErrInvalidMaxChars = errors.New("chunker: max chars must be positive")

// Config configures the segmenter.
type Config struct {
	MaxChars int
}

// DefaultConfig returns the streaming pipeline defaults.
func DefaultConfig() Config {
	return Config{MaxChars: DefaultMaxChars}
}

// Segmenter turns documents into chunk records. It holds no per-document state
// and is safe for concurrent use.
type Segmenter struct {
	cfg Config
}

// NewSegmenter validates cfg and builds a segmenter.
func NewSegmenter(cfg Config) (*Segmenter, error) {
	if cfg.MaxChars <= 0 {
		return nil, ErrInvalidMaxChars
	}
	return &Segmenter{cfg: cfg}, nil
}

// MaxChars reports the configured budget.
func (s *Segmenter) MaxChars() int { return s.cfg.MaxChars }

// Segment lazily yields the chunks of doc, block by block. Stopping early is safe.
func (s *Segmenter) Segment(doc domain.Document) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		for _, block := range ExtractBlocks(doc.Content) {
			text := Normalize(block.Text)
			if text == "" {
				continue
			}
			for _, content := range AssembleChunks(SplitSentences(text), s.cfg.MaxChars) {
				chunk := domain.Chunk{
					Content: content,
					Metadata: domain.ChunkMetadata{
						Source: doc.ID,
						ParaID: block.ParaID,
					},
				}
				if !yield(chunk) {
					return
				}
			}
		}
	}
}

// SegmentAll collects every chunk of doc.
func (s *Segmenter) SegmentAll(doc domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for c := range s.Segment(doc) {
		chunks = append(chunks, c)
	}
	return chunks
}
