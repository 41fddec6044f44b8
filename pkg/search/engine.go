package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/databases"
	"github.com/docvector/docvector/pkg/embedders"
	"github.com/docvector/docvector/pkg/errdefs"
)

const (
	SearchTypeVector = "vector"
	SearchTypeHybrid = "hybrid"
)

// SearchRequest is one query against the index. Zero values fall back
// to configured defaults.
type SearchRequest struct {
	Query          string
	Limit          int
	SearchType     string
	AccessLevel    string
	Topics         []string
	LibraryID      string
	Version        string
	Filters        map[string]interface{}
	ScoreThreshold float32
	UseReranking   bool
	MaxTokens      int
}

// SearchResult is one hit, hydrated from the index payload.
type SearchResult struct {
	ChunkID    string
	DocumentID string
	Score      float64
	Content    string
	Title      string
	URL        string
	Metadata   map[string]interface{}
	Truncated  bool
}

// Engine orchestrates query embedding, filtered vector search,
// reranking, and token packing.
type Engine struct {
	vectors    databases.VectorStore
	embedder   embedders.EmbedderProvider
	reranker   *Reranker
	packer     *Packer
	collection string
	cfg        config.SearchConfig
}

func NewEngine(vectors databases.VectorStore, embedder embedders.EmbedderProvider, cfg *config.Config) *Engine {
	return &Engine{
		vectors:    vectors,
		embedder:   embedder,
		reranker:   NewReranker(DefaultWeights()),
		packer:     NewPacker(NewTokenCounter()),
		collection: cfg.Qdrant.Collection,
		cfg:        cfg.Search,
	}
}

// Search runs one query end to end.
func (e *Engine) Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error) {
	if req == nil || req.Query == "" {
		return nil, errdefs.New(errdefs.CodeValidation, "search query must not be empty")
	}

	searchType := req.SearchType
	switch searchType {
	case "":
		searchType = SearchTypeHybrid
	case SearchTypeVector, SearchTypeHybrid:
	default:
		return nil, errdefs.Newf(errdefs.CodeValidation,
			"unsupported search type: %s (supported: vector, hybrid)", searchType)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	rerank := req.UseReranking && searchType != SearchTypeVector

	vector, err := e.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeEmbedding, "failed to embed query", err)
	}

	// Overfetch when reranking so the reranker has headroom.
	fetchLimit := limit
	if rerank || searchType == SearchTypeHybrid {
		fetchLimit = limit * 2
	}

	filter := e.buildFilter(req)
	candidates, err := e.vectors.Search(ctx, e.collection, vector, fetchLimit, filter, req.ScoreThreshold)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeSearch, "vector search failed", err)
	}

	slog.Debug("vector search completed",
		"query_len", len(req.Query), "candidates", len(candidates),
		"search_type", searchType, "rerank", rerank)

	var results []SearchResult
	if rerank {
		results = e.rerankedResults(req.Query, candidates)
	} else {
		results = e.plainResults(candidates, searchType)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	if req.MaxTokens > 0 {
		results = e.packer.Pack(results, req.MaxTokens)
	}
	return results, nil
}

// buildFilter merges the typed request fields with caller-supplied
// filters. Typed fields win on key collisions.
func (e *Engine) buildFilter(req *SearchRequest) map[string]interface{} {
	filter := make(map[string]interface{}, len(req.Filters)+4)
	for k, v := range req.Filters {
		filter[k] = v
	}
	if req.AccessLevel != "" {
		filter["access_level"] = req.AccessLevel
	}
	if len(req.Topics) > 0 {
		filter["topics"] = map[string]interface{}{"$in": req.Topics}
	}
	if req.LibraryID != "" {
		filter["library_id"] = req.LibraryID
	}
	if req.Version != "" {
		filter["version"] = req.Version
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

func (e *Engine) rerankedResults(query string, candidates []databases.SearchResult) []SearchResult {
	ranked := e.reranker.Rerank(query, candidates)
	results := make([]SearchResult, len(ranked))
	for i, rr := range ranked {
		results[i] = SearchResult{
			ChunkID:    payloadString(rr.Payload, "chunk_id"),
			DocumentID: payloadString(rr.Payload, "document_id"),
			Score:      rr.FinalScore,
			Content:    rr.Content,
			Title:      payloadString(rr.Payload, "title"),
			URL:        payloadString(rr.Payload, "url"),
			Metadata:   rr.Payload,
		}
		if results[i].ChunkID == "" {
			results[i].ChunkID = rr.ID
		}
	}
	return results
}

// plainResults hydrates candidates without metric scoring. Hybrid
// searches still weight the vector score by the configured blend so
// scores stay comparable with reranked runs.
func (e *Engine) plainResults(candidates []databases.SearchResult, searchType string) []SearchResult {
	weight := 1.0
	if searchType == SearchTypeHybrid {
		weight = e.cfg.VectorWeight / (e.cfg.VectorWeight + e.cfg.KeywordWeight)
	}

	results := make([]SearchResult, len(candidates))
	for i, res := range candidates {
		results[i] = SearchResult{
			ChunkID:    payloadString(res.Metadata, "chunk_id"),
			DocumentID: payloadString(res.Metadata, "document_id"),
			Score:      float64(res.Score) * weight,
			Content:    resultContent(res),
			Title:      payloadString(res.Metadata, "title"),
			URL:        payloadString(res.Metadata, "url"),
			Metadata:   res.Metadata,
		}
		if results[i].ChunkID == "" {
			results[i].ChunkID = res.ID
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}
