package search

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`\w+`)

// RelevanceScore measures how well content matches a query, in [0, 1].
// An exact phrase match earns 0.4, word-set overlap contributes up to
// 0.3, and each query term of three or more characters earns a
// frequency bonus capped at 0.3.
func RelevanceScore(query, content string) float64 {
	q := strings.ToLower(query)
	c := strings.ToLower(content)

	score := 0.0
	if q != "" && strings.Contains(c, q) {
		score += 0.4
	}

	queryWords := wordSet(q)
	if len(queryWords) > 0 {
		contentWords := wordSet(c)
		overlap := 0
		for w := range queryWords {
			if contentWords[w] {
				overlap++
			}
		}
		score += 0.3 * float64(overlap) / float64(len(queryWords))
	}

	for _, term := range strings.Fields(q) {
		if len(term) < 3 {
			continue
		}
		count := strings.Count(c, term)
		if count == 0 {
			continue
		}
		bonus := 0.1 * float64(count) / 10
		if bonus > 0.3 {
			bonus = 0.3
		}
		score += bonus
	}

	if score > 1 {
		return 1
	}
	return score
}

func wordSet(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(text, -1) {
		words[w] = true
	}
	return words
}
