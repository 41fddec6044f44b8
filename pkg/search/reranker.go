// Package search embeds queries, runs filtered vector search, reranks
// candidates on content-quality metrics, and packs results into a
// token budget.
package search

import (
	"sort"

	"github.com/docvector/docvector/pkg/databases"
	"github.com/docvector/docvector/pkg/extraction"
)

// Blend ratio between the quality-weighted score and the raw vector
// similarity.
const (
	RerankedBlendWeight = 0.7
	VectorBlendWeight   = 0.3
)

// Weights are the relative importance of each reranking metric. They
// are normalised to sum to 1 before use.
type Weights struct {
	Relevance      float64
	CodeQuality    float64
	Formatting     float64
	Metadata       float64
	Initialization float64
}

func DefaultWeights() Weights {
	return Weights{
		Relevance:      0.35,
		CodeQuality:    0.25,
		Formatting:     0.15,
		Metadata:       0.10,
		Initialization: 0.15,
	}
}

func (w Weights) normalised() Weights {
	total := w.Relevance + w.CodeQuality + w.Formatting + w.Metadata + w.Initialization
	if total <= 0 {
		return DefaultWeights().normalised()
	}
	return Weights{
		Relevance:      w.Relevance / total,
		CodeQuality:    w.CodeQuality / total,
		Formatting:     w.Formatting / total,
		Metadata:       w.Metadata / total,
		Initialization: w.Initialization / total,
	}
}

// RankedResult is a candidate with its per-metric scores and the
// blended final score.
type RankedResult struct {
	ID             string
	Content        string
	VectorScore    float64
	Relevance      float64
	CodeQuality    float64
	Formatting     float64
	Metadata       float64
	Initialization float64
	FinalScore     float64
	Payload        map[string]interface{}
}

// Reranker reorders vector-search candidates by blending five quality
// metrics with the vector similarity.
type Reranker struct {
	weights Weights
}

func NewReranker(weights Weights) *Reranker {
	return &Reranker{weights: weights.normalised()}
}

// Rerank scores every candidate and returns them sorted by final
// score, best first. Quality scores stored in the payload at ingest
// time win over recomputation; relevance is always computed against
// the query. Equal scores keep their vector-search order.
func (r *Reranker) Rerank(query string, results []databases.SearchResult) []RankedResult {
	ranked := make([]RankedResult, len(results))
	for i, res := range results {
		rr := RankedResult{
			ID:          res.ID,
			Content:     resultContent(res),
			VectorScore: float64(res.Score),
			Payload:     res.Metadata,
		}

		rr.Relevance = RelevanceScore(query, rr.Content)
		if hasStoredScores(res.Metadata) {
			rr.CodeQuality = payloadScore(res.Metadata, "code_quality_score")
			rr.Formatting = payloadScore(res.Metadata, "formatting_score")
			rr.Metadata = payloadScore(res.Metadata, "metadata_score")
			rr.Initialization = payloadScore(res.Metadata, "initialization_score")
		} else {
			scores := extraction.ScoreSnippet(&extraction.CodeSnippet{
				Code:     rr.Content,
				Language: payloadString(res.Metadata, "code_language"),
				Context:  payloadString(res.Metadata, "title"),
			})
			rr.CodeQuality = scores.CodeQuality
			rr.Formatting = scores.Formatting
			rr.Metadata = scores.Metadata
			rr.Initialization = scores.Initialization
		}

		weighted := rr.Relevance*r.weights.Relevance +
			rr.CodeQuality*r.weights.CodeQuality +
			rr.Formatting*r.weights.Formatting +
			rr.Metadata*r.weights.Metadata +
			rr.Initialization*r.weights.Initialization
		rr.FinalScore = RerankedBlendWeight*weighted + VectorBlendWeight*rr.VectorScore

		ranked[i] = rr
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

func resultContent(res databases.SearchResult) string {
	if res.Content != "" {
		return res.Content
	}
	return payloadString(res.Metadata, "content")
}

func hasStoredScores(payload map[string]interface{}) bool {
	if payload == nil {
		return false
	}
	_, ok := payload["code_quality_score"]
	return ok
}

func payloadScore(payload map[string]interface{}, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	v, _ := payload[key].(string)
	return v
}
