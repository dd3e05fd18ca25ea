// Package tfidf is the local dense embedder: sublinear TF-IDF over the chunk
// vocabulary, L2-normalised so that dot product is cosine similarity.
package tfidf

import (
	"context"
	"errors"
	"maps"
	"math"
	"slices"

	"legalrag/internal/embedding"
)

var (
	ErrEmptyCorpus = errors.New("tfidf: empty corpus")
	ErrNotPrepared = errors.New("tfidf: embedder not prepared")
)

// slot is a vocabulary term's vector position and inverse document frequency.
type slot struct {
	index int
	idf   float64
}

// Embedder maps text onto a vocabulary fixed by Prepare. The vocabulary
// depends only on the set of texts, not their order, so refitting on the
// same chunk file reproduces vectors stored by an earlier run.
type Embedder struct {
	vocab map[string]slot
}

func NewEmbedder() *Embedder { return &Embedder{} }

func (e *Embedder) Name() string { return "tfidf" }

// Prepare fits the vocabulary with smoothed IDF, log((1+n)/(1+df)) + 1.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	df := make(map[string]int)
	for _, text := range corpus {
		for term := range termCounts(text) {
			df[term]++
		}
	}
	if len(df) == 0 {
		return errors.New("tfidf: corpus has no indexable terms")
	}
	n := float64(len(corpus))
	vocab := make(map[string]slot, len(df))
	for i, term := range slices.Sorted(maps.Keys(df)) {
		vocab[term] = slot{index: i, idf: math.Log((1+n)/(1+float64(df[term]))) + 1}
	}
	e.vocab = vocab
	return nil
}

func (e *Embedder) Dimension() int { return len(e.vocab) }

// Embed weights each known term by (1 + ln tf) * idf. Text with no known
// terms yields the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	if e.vocab == nil {
		return nil, ErrNotPrepared
	}
	vec := make([]float64, len(e.vocab))
	sumSq := 0.0
	for term, count := range termCounts(text) {
		s, ok := e.vocab[term]
		if !ok {
			continue
		}
		w := (1 + math.Log(float64(count))) * s.idf
		vec[s.index] = w
		sumSq += w * w
	}
	if sumSq > 0 {
		norm := math.Sqrt(sumSq)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range embedding.Tokenize(text) {
		counts[tok]++
	}
	return counts
}
