package chunker

import (
	"strings"
	"unicode/utf8"
)

// AssembleChunks greedily packs sentences into chunks of at most maxChars
// characters, not counting the joining spaces. A sentence longer than maxChars
// is never split and becomes a chunk on its own. maxChars must be positive.
func AssembleChunks(sentences []string, maxChars int) []string {
	if maxChars <= 0 {
		panic("chunker: max chars must be positive")
	}
	var (
		chunks  []string
		current []string
		length  int
	)
	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if len(current) > 0 && length+n > maxChars {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{s}
			length = n
			continue
		}
		current = append(current, s)
		length += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
