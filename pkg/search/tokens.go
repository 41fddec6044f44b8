package search

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// tokensPerWord is the rough tokens-per-word ratio used when no exact
// tokenizer is available.
const tokensPerWord = 1.3

// EstimateTokens approximates the token count of text as words x 1.3.
func EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * tokensPerWord)
}

// TokenCounter counts tokens with the cl100k_base encoding when the
// tokenizer can be loaded, and falls back to estimation otherwise.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: encoding}
}

// Count returns the token count of text.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// TruncateToTokens trims text to at most maxTokens, cutting on
// sentence boundaries.
func (tc *TokenCounter) TruncateToTokens(text string, maxTokens int) string {
	if tc.Count(text) <= maxTokens {
		return text
	}

	var b strings.Builder
	used := 0
	for _, sentence := range splitSentences(text) {
		n := tc.Count(sentence)
		if used+n > maxTokens {
			break
		}
		b.WriteString(sentence)
		b.WriteString(" ")
		used += n
	}
	return strings.TrimSpace(b.String())
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace. The punctuation stays with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
