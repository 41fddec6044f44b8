package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docvector/docvector/pkg/databases"
)

func TestRelevanceScorePhraseAndOverlap(t *testing.T) {
	score := RelevanceScore("install docvector", "To install docvector run pip.")
	// Phrase 0.4 + full word overlap 0.3 + two term bonuses of 0.01.
	assert.InDelta(t, 0.72, score, 0.001)
}

func TestRelevanceScoreNoMatch(t *testing.T) {
	assert.Equal(t, 0.0, RelevanceScore("kubernetes ingress", "a page about cooking pasta"))
}

func TestRelevanceScoreCapped(t *testing.T) {
	content := ""
	for i := 0; i < 200; i++ {
		content += "install install install "
	}
	score := RelevanceScore("install install install", content)
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, 0.9)
}

func TestRelevanceScoreSkipsShortTerms(t *testing.T) {
	// "go" is under three characters, so only phrase + overlap count.
	score := RelevanceScore("go", "go go go go go go go go go go go go")
	assert.InDelta(t, 0.7, score, 0.001)
}

func TestRerankUsesStoredScores(t *testing.T) {
	r := NewReranker(DefaultWeights())

	candidates := []databases.SearchResult{
		{
			ID:      "plain",
			Content: "an unrelated paragraph about nothing in particular",
			Score:   0.5,
			Metadata: map[string]interface{}{
				"code_quality_score":   0.0,
				"formatting_score":     0.0,
				"metadata_score":       0.0,
				"initialization_score": 0.0,
			},
		},
		{
			ID:      "quality",
			Content: "another unrelated paragraph about nothing in particular",
			Score:   0.5,
			Metadata: map[string]interface{}{
				"code_quality_score":   1.0,
				"formatting_score":     1.0,
				"metadata_score":       1.0,
				"initialization_score": 1.0,
			},
		},
	}

	ranked := r.Rerank("qdrant payload indexes", candidates)
	assert.Equal(t, "quality", ranked[0].ID)
	assert.Equal(t, "plain", ranked[1].ID)

	// Relevance 0, quality metrics sum to 0.65 of the weight mass:
	// final = 0.7*0.65 + 0.3*0.5.
	assert.InDelta(t, 0.605, ranked[0].FinalScore, 0.001)
	assert.InDelta(t, 0.15, ranked[1].FinalScore, 0.001)
}

func TestRerankStableOnTies(t *testing.T) {
	r := NewReranker(DefaultWeights())

	candidates := []databases.SearchResult{
		{ID: "first", Content: "identical content", Score: 0.4},
		{ID: "second", Content: "identical content", Score: 0.4},
		{ID: "third", Content: "identical content", Score: 0.4},
	}

	ranked := r.Rerank("something else entirely", candidates)
	assert.Equal(t, "first", ranked[0].ID)
	assert.Equal(t, "second", ranked[1].ID)
	assert.Equal(t, "third", ranked[2].ID)
}

func TestRerankRecomputesWithoutStoredScores(t *testing.T) {
	r := NewReranker(DefaultWeights())

	code := "import docvector\n\nclient = docvector.New(\"http://localhost\")\n# run a query\nresults = client.search(\"install\")\nprint(results)"
	ranked := r.Rerank("search client", []databases.SearchResult{
		{ID: "code", Content: code, Score: 0.2, Metadata: map[string]interface{}{"title": "Quick start"}},
	})

	assert.Greater(t, ranked[0].CodeQuality, 0.0)
	assert.Greater(t, ranked[0].Initialization, 0.0)
	assert.Greater(t, ranked[0].FinalScore, 0.3*0.2)
}

func TestWeightsNormalised(t *testing.T) {
	r := NewReranker(Weights{Relevance: 2, CodeQuality: 2, Formatting: 2, Metadata: 2, Initialization: 2})
	assert.InDelta(t, 0.2, r.weights.Relevance, 0.001)

	// Degenerate weights fall back to defaults.
	r = NewReranker(Weights{})
	assert.InDelta(t, 0.35, r.weights.Relevance, 0.001)
}
