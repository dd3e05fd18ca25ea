// Package bm25 encodes text as sparse BM25 term-weight vectors for the
// keyword leg of hybrid search.
package bm25

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"slices"

	"legalrag/internal/domain"
	"legalrag/internal/embedding"
)

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

var ErrNotFitted = errors.New("bm25: encoder not fitted")

// Params are the fitted corpus statistics. They are persisted so that queries
// can be encoded without refitting.
type Params struct {
	K1      float64        `json:"k1"`
	B       float64        `json:"b"`
	NDocs   int            `json:"n_docs"`
	AvgDL   float64        `json:"avgdl"`
	DocFreq map[uint32]int `json:"doc_freq"`
}

// Encoder is a BM25 sparse encoder.
type Encoder struct {
	p Params
}

// New returns an unfitted encoder. Zero k1 or b fall back to the defaults.
func New(k1, b float64) *Encoder {
	if k1 == 0 {
		k1 = DefaultK1
	}
	if b == 0 {
		b = DefaultB
	}
	return &Encoder{p: Params{K1: k1, B: b}}
}

// Fitted reports whether corpus statistics are available.
func (e *Encoder) Fitted() bool { return e.p.NDocs > 0 }

// Fit computes document frequencies and average length over corpus.
func (e *Encoder) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("bm25: empty corpus")
	}
	df := make(map[uint32]int)
	total := 0
	for _, doc := range corpus {
		tf, n := termFreqs(doc)
		total += n
		for idx := range tf {
			df[idx]++
		}
	}
	e.p.DocFreq = df
	e.p.NDocs = len(corpus)
	e.p.AvgDL = float64(total) / float64(len(corpus))
	return nil
}

// EncodeDocument weights each term by saturated, length-normalized frequency.
func (e *Encoder) EncodeDocument(text string) domain.SparseVector {
	tf, dl := termFreqs(text)
	avgdl := e.p.AvgDL
	if avgdl == 0 {
		avgdl = 1
	}
	norm := e.p.K1 * (1 - e.p.B + e.p.B*float64(dl)/avgdl)
	return build(tf, func(_ uint32, f int) float64 {
		return float64(f) * (e.p.K1 + 1) / (float64(f) + norm)
	})
}

// EncodeQuery weights each distinct term by IDF, normalized to sum to one.
func (e *Encoder) EncodeQuery(text string) domain.SparseVector {
	tf, _ := termFreqs(text)
	vec := build(tf, func(idx uint32, _ int) float64 {
		df, ok := e.p.DocFreq[idx]
		if !ok {
			df = 1
		}
		return math.Log((float64(e.p.NDocs) + 1) / (float64(df) + 0.5))
	})
	sum := 0.0
	for _, v := range vec.Values {
		sum += v
	}
	if sum != 0 {
		for i := range vec.Values {
			vec.Values[i] /= sum
		}
	}
	return vec
}

// Save writes the fitted parameters as JSON.
func (e *Encoder) Save(path string) error {
	if !e.Fitted() {
		return ErrNotFitted
	}
	data, err := json.Marshal(e.p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load replaces the parameters with those saved at path.
func (e *Encoder) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("bm25: decode %s: %w", path, err)
	}
	if p.NDocs <= 0 {
		return fmt.Errorf("bm25: %s: %w", path, ErrNotFitted)
	}
	e.p = p
	return nil
}

// TermIndex maps a token to its sparse dimension.
func TermIndex(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func termFreqs(text string) (map[uint32]int, int) {
	tokens := embedding.Tokenize(text)
	tf := make(map[uint32]int, len(tokens))
	for _, t := range tokens {
		tf[TermIndex(t)]++
	}
	return tf, len(tokens)
}

func build(tf map[uint32]int, weight func(idx uint32, f int) float64) domain.SparseVector {
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	slices.Sort(indices)
	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = weight(idx, tf[idx])
	}
	return domain.SparseVector{Indices: indices, Values: values}
}
