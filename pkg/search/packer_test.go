package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// estimatingCounter skips the tokenizer so counts are the words x 1.3
// estimate, which keeps these tests deterministic and offline.
func estimatingCounter() *TokenCounter { return &TokenCounter{} }

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 5, EstimateTokens("one two three four"))
	assert.Equal(t, 0, EstimateTokens(""))
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First one. Second one! Third one? Trailing fragment")
	require.Len(t, sentences, 4)
	assert.Equal(t, "First one.", sentences[0])
	assert.Equal(t, "Second one!", sentences[1])
	assert.Equal(t, "Third one?", sentences[2])
	assert.Equal(t, "Trailing fragment", sentences[3])
}

func TestTruncateToTokensKeepsWholeSentences(t *testing.T) {
	tc := estimatingCounter()
	text := "Install the package first. Then configure the database connection. Finally start the daemon process."

	out := tc.TruncateToTokens(text, 8)
	assert.Equal(t, "Install the package first.", out)

	// Fits entirely: returned untouched.
	assert.Equal(t, text, tc.TruncateToTokens(text, 1000))
}

// packerChunk is ~198 estimated tokens: 17 sentences of 9 words.
func packerChunk() string {
	sentence := "alpha beta gamma delta epsilon zeta eta theta iota."
	return strings.TrimSpace(strings.Repeat(sentence+" ", 17))
}

func TestPackBudgetWithTruncation(t *testing.T) {
	p := NewPacker(estimatingCounter())

	results := make([]SearchResult, 10)
	for i := range results {
		results[i] = SearchResult{ChunkID: string(rune('a' + i)), Content: packerChunk()}
	}

	packed := p.Pack(results, 450)
	require.Len(t, packed, 3)
	assert.False(t, packed[0].Truncated)
	assert.False(t, packed[1].Truncated)
	assert.True(t, packed[2].Truncated)

	total := 0
	for _, res := range packed {
		total += EstimateTokens(res.Content)
	}
	assert.LessOrEqual(t, total, 450)

	// The truncated tail is around the leftover ~54 tokens and ends on
	// a sentence boundary.
	tail := EstimateTokens(packed[2].Content)
	assert.Greater(t, tail, 30)
	assert.LessOrEqual(t, tail, 54)
	assert.True(t, strings.HasSuffix(packed[2].Content, "."))
}

func TestPackSkipsTinyLeftover(t *testing.T) {
	p := NewPacker(estimatingCounter())

	results := []SearchResult{
		{ChunkID: "a", Content: packerChunk()},
		{ChunkID: "b", Content: packerChunk()},
		{ChunkID: "c", Content: packerChunk()},
	}

	// Two full chunks use 396 tokens; 4 left is below the partial
	// threshold, so the third is dropped entirely.
	packed := p.Pack(results, 400)
	require.Len(t, packed, 2)
	assert.False(t, packed[0].Truncated)
	assert.False(t, packed[1].Truncated)
}

func TestPackEverythingFits(t *testing.T) {
	p := NewPacker(estimatingCounter())

	results := []SearchResult{
		{ChunkID: "a", Content: "short content here."},
		{ChunkID: "b", Content: "more short content here."},
	}
	packed := p.Pack(results, 100)
	require.Len(t, packed, 2)
	for _, res := range packed {
		assert.False(t, res.Truncated)
	}
}

func TestPackZeroBudgetDisablesPacking(t *testing.T) {
	p := NewPacker(estimatingCounter())
	results := []SearchResult{{ChunkID: "a", Content: packerChunk()}}
	assert.Len(t, p.Pack(results, 0), 1)
}
