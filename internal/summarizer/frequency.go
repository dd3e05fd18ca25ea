// Package summarizer picks representative sentences out of an indexed corpus.
package summarizer

import (
	"math"
	"sort"
	"strings"

	"legalrag/internal/chunker"
	"legalrag/internal/domain"
	"legalrag/internal/embedding"
)

// KeySentence is a sentence lifted from a chunk, with its citation.
type KeySentence struct {
	Text   string
	Source string
	ParaID string
}

// FrequencySummarizer ranks sentences by word frequency across the corpus.
type FrequencySummarizer struct{}

func NewFrequencySummarizer() *FrequencySummarizer { return &FrequencySummarizer{} }

// Summarize returns up to maxSentences key sentences in corpus order.
func (s *FrequencySummarizer) Summarize(chunks []domain.Chunk, maxSentences int) []KeySentence {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	type candidate struct {
		KeySentence
		tokens []string
	}
	var candidates []candidate
	freq := map[string]float64{}
	for _, c := range chunks {
		for _, sent := range chunker.SplitSentences(c.Content) {
			tokens := embedding.Tokenize(sent)
			if len(tokens) == 0 {
				continue
			}
			for _, tok := range tokens {
				freq[tok]++
			}
			candidates = append(candidates, candidate{
				KeySentence: KeySentence{Text: strings.TrimSpace(sent), Source: c.Metadata.Source, ParaID: c.Metadata.ParaID},
				tokens:      tokens,
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(candidates))
	for i, c := range candidates {
		score := 0.0
		for _, tok := range c.tokens {
			score += freq[tok] / maxF
		}
		// Normalize by sentence length to avoid bias
		scores[i] = pair{i, score / math.Sqrt(float64(len(c.tokens)))}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	maxSentences = min(maxSentences, len(scores))
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]KeySentence, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx].KeySentence
	}
	return out
}

// Format renders key sentences as one line each, "text (source, para)".
func Format(sentences []KeySentence) string {
	lines := make([]string, len(sentences))
	for i, k := range sentences {
		lines[i] = k.Text + " (" + k.Source + ", " + k.ParaID + ")"
	}
	return strings.Join(lines, "\n")
}
