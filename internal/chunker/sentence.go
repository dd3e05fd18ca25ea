package chunker

import (
	"regexp"
	"strings"
)

// sentenceBoundary is a terminator followed by whitespace. Abbreviations and
// decimals are not special-cased.
var sentenceBoundary = regexp.MustCompile(`[.?!]\s+`)

// SplitSentences splits normalized text into sentences. The terminator stays
// with its sentence and the whitespace after it is dropped. Trailing text
// without a terminator forms the last sentence.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}
	var sentences []string
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// Normalize collapses runs of whitespace into single spaces and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
