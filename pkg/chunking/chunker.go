// Package chunking splits normalized document text into chunks, the
// atomic unit of embedding and retrieval. Chunkers are pure CPU work;
// callers may dispatch them to a worker pool.
package chunking

import (
	"fmt"
)

// Chunker defines the interface for content chunking strategies
type Chunker interface {
	// Chunk splits content into smaller pieces
	Chunk(content string) ([]Chunk, error)

	// GetConfig returns the chunker configuration
	GetConfig() ChunkerConfig
}

// Chunk represents a piece of content with position information.
// StartChar/EndChar are rune offsets into the original text.
type Chunk struct {
	Content   string                 `json:"content"`
	Index     int                    `json:"index"`
	StartChar int                    `json:"start_char"`
	EndChar   int                    `json:"end_char"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ChunkerConfig contains chunking configuration
type ChunkerConfig struct {
	Strategy string `json:"strategy"` // "fixed" or "semantic"
	Size     int    `json:"size"`     // Target size in characters
	Overlap  int    `json:"overlap"`  // Overlap size in characters (fixed only)
	// Separator is the preferred break string for the fixed strategy
	Separator string `json:"separator"`
}

// DefaultChunkerConfig returns default chunking configuration
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		Strategy:  "semantic",
		Size:      1000,
		Overlap:   200,
		Separator: "\n",
	}
}

// Validate checks if the configuration is valid
func (c *ChunkerConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap cannot be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)", c.Overlap, c.Size)
	}
	validStrategies := map[string]bool{
		"fixed":    true,
		"semantic": true,
	}
	if !validStrategies[c.Strategy] {
		return fmt.Errorf("invalid chunking strategy: %s (must be 'fixed' or 'semantic')", c.Strategy)
	}
	return nil
}

// NewChunker creates a chunker based on the strategy
func NewChunker(config ChunkerConfig) (Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Strategy {
	case "fixed":
		return NewFixedSizeChunker(config), nil
	case "semantic":
		return NewSemanticChunker(config), nil
	default:
		return NewFixedSizeChunker(config), nil
	}
}

// trimBounds returns the rune range [lo, hi) of text with leading and
// trailing whitespace excluded.
func trimBounds(runes []rune) (int, int) {
	lo, hi := 0, len(runes)
	for lo < hi && isSpace(runes[lo]) {
		lo++
	}
	for hi > lo && isSpace(runes[hi-1]) {
		hi--
	}
	return lo, hi
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
