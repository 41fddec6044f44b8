package chunking

import (
	"strings"
)

// FixedSizeChunker emits chunks of at most Size characters with Overlap
// characters shared between consecutive chunks. When a chunk does not end
// at the end of the text, the break is moved back to the last occurrence
// of the configured separator within the second half of the window.
type FixedSizeChunker struct {
	config ChunkerConfig
}

// NewFixedSizeChunker creates a new fixed-size chunker
func NewFixedSizeChunker(config ChunkerConfig) *FixedSizeChunker {
	return &FixedSizeChunker{
		config: config,
	}
}

// Chunk splits content into fixed-size chunks with overlap
func (fc *FixedSizeChunker) Chunk(content string) ([]Chunk, error) {
	runes := []rune(content)
	lo, hi := trimBounds(runes)
	if lo >= hi {
		return []Chunk{}, nil
	}

	size := fc.config.Size
	overlap := fc.config.Overlap
	sep := []rune(fc.config.Separator)

	var chunks []Chunk
	start := lo
	for start < hi {
		end := start + size
		if end > hi {
			end = hi
		}

		// Prefer a separator break in the second half of the window so
		// chunks tend to end on natural boundaries.
		if end < hi && len(sep) > 0 {
			if idx := lastIndexRunes(runes, sep, start+size/2, end); idx >= 0 {
				end = idx + len(sep)
			}
		}

		chunks = append(chunks, Chunk{
			Content:   string(runes[start:end]),
			Index:     len(chunks),
			StartChar: start,
			EndChar:   end,
			Metadata: map[string]interface{}{
				"strategy": "fixed",
			},
		})

		if end >= hi {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// GetConfig returns the chunker configuration
func (fc *FixedSizeChunker) GetConfig() ChunkerConfig {
	return fc.config
}

// lastIndexRunes finds the last occurrence of sep within runes[from:to],
// returning the rune index of the match start, or -1.
func lastIndexRunes(runes []rune, sep []rune, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if to-from < len(sep) {
		return -1
	}
	haystack := string(runes[from:to])
	idx := strings.LastIndex(haystack, string(sep))
	if idx < 0 {
		return -1
	}
	// Convert byte offset back to a rune offset.
	return from + len([]rune(haystack[:idx]))
}
