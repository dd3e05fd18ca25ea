package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleChunks(t *testing.T) {
	t.Run("Should pack sentences until the budget is exceeded", func(t *testing.T) {
		got := AssembleChunks([]string{"aaaa", "bbbb", "cccc"}, 10)
		assert.Equal(t, []string{"aaaa bbbb", "cccc"}, got)
	})

	t.Run("Should not count joining spaces", func(t *testing.T) {
		got := AssembleChunks([]string{"aaaaa", "bbbbb"}, 10)
		assert.Equal(t, []string{"aaaaa bbbbb"}, got)
	})

	t.Run("Should return nothing for no sentences", func(t *testing.T) {
		assert.Empty(t, AssembleChunks(nil, 10))
	})

	t.Run("Should pass an oversized sentence through whole", func(t *testing.T) {
		long := strings.Repeat("x", 5000)
		got := AssembleChunks([]string{long}, 1200)
		require.Len(t, got, 1)
		assert.Len(t, got[0], 5000)
	})

	t.Run("Should isolate an oversized sentence between small ones", func(t *testing.T) {
		big := strings.Repeat("b", 20)
		got := AssembleChunks([]string{"aa", big, "cc"}, 10)
		assert.Equal(t, []string{"aa", big, "cc"}, got)
	})

	t.Run("Should count characters not bytes", func(t *testing.T) {
		got := AssembleChunks([]string{"§§§§§", "§§§§§"}, 10)
		assert.Equal(t, []string{"§§§§§ §§§§§"}, got)
	})

	t.Run("Should panic on a non-positive budget", func(t *testing.T) {
		assert.Panics(t, func() { AssembleChunks([]string{"a"}, 0) })
	})
}

func TestAssembleChunksGreedy(t *testing.T) {
	sentences := SplitSentences("The court heard the appeal. It was dismissed. " +
		"Costs follow the event. The respondent sought interest at the statutory rate! " +
		"Was interest payable? The tribunal said no. Leave to appeal was refused.")
	for _, maxChars := range []int{1, 20, 30, 45, 80, 1200} {
		chunks := AssembleChunks(sentences, maxChars)
		assert.Equal(t, strings.Join(sentences, " "), strings.Join(chunks, " "))

		// Replay the packing to check each boundary was forced.
		idx := 0
		for ci, c := range chunks {
			assert.NotEmpty(t, c)
			members := sentencesOf(c, sentences[idx:])
			require.NotEmpty(t, members, "chunk %q is not a run of sentences", c)
			length := 0
			for _, s := range members {
				length += utf8.RuneCountInString(s)
			}
			if len(members) > 1 {
				assert.LessOrEqual(t, length, maxChars)
			}
			idx += len(members)
			if ci+1 < len(chunks) {
				next := utf8.RuneCountInString(sentences[idx])
				assert.Greater(t, length+next, maxChars, "next sentence would have fit")
			}
		}
		assert.Equal(t, len(sentences), idx)
	}
}

// sentencesOf returns the prefix of candidates whose join equals chunk.
func sentencesOf(chunk string, candidates []string) []string {
	for n := 1; n <= len(candidates); n++ {
		if strings.Join(candidates[:n], " ") == chunk {
			return candidates[:n]
		}
	}
	return nil
}
