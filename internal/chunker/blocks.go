package chunker

import (
	"regexp"
	"strings"

	"legalrag/internal/domain"
)

// BulletMarker delimits logical sections in bulleted documents.
const BulletMarker = '■'

// paraTag matches "[Para ...]" tags, case-insensitive, possibly spanning lines.
var paraTag = regexp.MustCompile(`(?is)\[Para[^\]]+\]`)

// Strategy is the block segmentation convention used for a whole document.
type Strategy int

const (
	// StrategyBullet splits on the bullet marker and labels each segment
	// with the last paragraph tag inside it.
	StrategyBullet Strategy = iota
	// StrategyTagged splits on paragraph tags; a tag labels the text before it.
	StrategyTagged
)

func (s Strategy) String() string {
	switch s {
	case StrategyBullet:
		return "bullet"
	case StrategyTagged:
		return "tagged"
	default:
		return "unknown"
	}
}

// DetectStrategy picks the strategy for a document once, from its full text.
func DetectStrategy(text string) Strategy {
	if strings.ContainsRune(text, BulletMarker) {
		return StrategyBullet
	}
	return StrategyTagged
}

// Extract splits text into ordered blocks using the strategy.
func (s Strategy) Extract(text string) []domain.Block {
	if s == StrategyBullet {
		return bulletBlocks(text)
	}
	return taggedBlocks(text)
}

// ExtractBlocks detects the document's strategy and splits it into blocks.
func ExtractBlocks(text string) []domain.Block {
	return DetectStrategy(text).Extract(text)
}

func bulletBlocks(text string) []domain.Block {
	var blocks []domain.Block
	for _, segment := range strings.Split(text, string(BulletMarker)) {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		paraID := domain.ParaIDNotAvailable
		if tags := paraTag.FindAllString(segment, -1); len(tags) > 0 {
			last := tags[len(tags)-1]
			segment = strings.ReplaceAll(segment, last, "")
			paraID = Normalize(last)
		}
		blocks = append(blocks, domain.Block{Text: segment, ParaID: paraID})
	}
	return blocks
}

func taggedBlocks(text string) []domain.Block {
	var blocks []domain.Block
	pending := text
	start := 0
	for _, loc := range paraTag.FindAllStringIndex(text, -1) {
		blocks = append(blocks, domain.Block{
			Text:   text[start:loc[0]],
			ParaID: Normalize(text[loc[0]:loc[1]]),
		})
		start = loc[1]
		pending = text[start:]
	}
	if strings.TrimSpace(pending) != "" {
		blocks = append(blocks, domain.Block{Text: pending, ParaID: domain.ParaIDNotAvailable})
	}
	return blocks
}
