package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/databases"
)

// stubVectorStore serves canned results, applying plain equality
// filters the way the real index would.
type stubVectorStore struct {
	results []databases.SearchResult

	lastLimit  int
	lastFilter map[string]interface{}
}

func (s *stubVectorStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}, scoreThreshold float32) ([]databases.SearchResult, error) {
	s.lastLimit = limit
	s.lastFilter = filter

	var out []databases.SearchResult
	for _, res := range s.results {
		if !matchesFilter(res, filter) {
			continue
		}
		out = append(out, res)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matchesFilter(res databases.SearchResult, filter map[string]interface{}) bool {
	for key, want := range filter {
		if _, nested := want.(map[string]interface{}); nested {
			continue
		}
		if res.Metadata[key] != want {
			return false
		}
	}
	return true
}

func (s *stubVectorStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	return nil
}

func (s *stubVectorStore) Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32, payloads []map[string]interface{}) error {
	return nil
}

func (s *stubVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	return nil
}

func (s *stubVectorStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	return nil
}

func (s *stubVectorStore) Get(ctx context.Context, collection string, ids []string) ([]databases.SearchResult, error) {
	return nil, nil
}

func (s *stubVectorStore) Count(ctx context.Context, collection string, filter map[string]interface{}) (uint64, error) {
	return 0, nil
}

func (s *stubVectorStore) Close() error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) GetDimension() int    { return 3 }
func (stubEmbedder) GetModelName() string { return "stub-model" }
func (stubEmbedder) Close() error         { return nil }

func newTestEngine(results []databases.SearchResult) (*Engine, *stubVectorStore) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	stub := &stubVectorStore{results: results}
	return NewEngine(stub, stubEmbedder{}, cfg), stub
}

func chunkResult(id, accessLevel string, score float32) databases.SearchResult {
	return databases.SearchResult{
		ID:    id,
		Score: score,
		Metadata: map[string]interface{}{
			"chunk_id":     id,
			"document_id":  "doc-" + id,
			"content":      "content of " + id,
			"access_level": accessLevel,
		},
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(nil)
	_, err := engine.Search(context.Background(), &SearchRequest{})
	require.Error(t, err)
}

func TestSearchRejectsUnknownType(t *testing.T) {
	engine, _ := newTestEngine(nil)
	_, err := engine.Search(context.Background(), &SearchRequest{Query: "q", SearchType: "keyword"})
	require.Error(t, err)
}

func TestSearchFiltersByAccessLevel(t *testing.T) {
	engine, stub := newTestEngine([]databases.SearchResult{
		chunkResult("a", "public", 0.9),
		chunkResult("b", "private", 0.95),
		chunkResult("c", "public", 0.8),
		chunkResult("d", "private", 0.99),
		chunkResult("e", "public", 0.7),
	})

	results, err := engine.Search(context.Background(), &SearchRequest{
		Query:       "anything",
		SearchType:  SearchTypeVector,
		AccessLevel: "public",
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, "public", res.Metadata["access_level"])
	}
	assert.Equal(t, "public", stub.lastFilter["access_level"])
}

func TestSearchBuildsFilterFromTypedFields(t *testing.T) {
	engine, stub := newTestEngine(nil)

	_, err := engine.Search(context.Background(), &SearchRequest{
		Query:     "anything",
		LibraryID: "lib-1",
		Version:   "2.0",
		Topics:    []string{"installation"},
		Filters:   map[string]interface{}{"language": "en"},
	})
	require.NoError(t, err)

	assert.Equal(t, "lib-1", stub.lastFilter["library_id"])
	assert.Equal(t, "2.0", stub.lastFilter["version"])
	assert.Equal(t, "en", stub.lastFilter["language"])
	topics, ok := stub.lastFilter["topics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []string{"installation"}, topics["$in"])
}

func TestSearchOverfetchesWhenReranking(t *testing.T) {
	engine, stub := newTestEngine(nil)

	_, err := engine.Search(context.Background(), &SearchRequest{
		Query:        "anything",
		Limit:        5,
		UseReranking: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, stub.lastLimit)
}

func TestSearchVectorTypeFetchesExactLimit(t *testing.T) {
	engine, stub := newTestEngine(nil)

	_, err := engine.Search(context.Background(), &SearchRequest{
		Query:      "anything",
		Limit:      5,
		SearchType: SearchTypeVector,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, stub.lastLimit)
}

func TestSearchClampsLimit(t *testing.T) {
	engine, stub := newTestEngine(nil)

	_, err := engine.Search(context.Background(), &SearchRequest{
		Query:      "anything",
		Limit:      5000,
		SearchType: SearchTypeVector,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, stub.lastLimit)
}

func TestSearchRerankingPrefersQuality(t *testing.T) {
	quality := chunkResult("quality", "public", 0.5)
	quality.Metadata["code_quality_score"] = 1.0
	quality.Metadata["formatting_score"] = 1.0
	quality.Metadata["metadata_score"] = 1.0
	quality.Metadata["initialization_score"] = 1.0

	plain := chunkResult("plain", "public", 0.5)
	plain.Metadata["code_quality_score"] = 0.0
	plain.Metadata["formatting_score"] = 0.0
	plain.Metadata["metadata_score"] = 0.0
	plain.Metadata["initialization_score"] = 0.0

	engine, _ := newTestEngine([]databases.SearchResult{plain, quality})

	results, err := engine.Search(context.Background(), &SearchRequest{
		Query:        "unrelated terms",
		UseReranking: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "quality", results[0].ChunkID)
	assert.Equal(t, "doc-quality", results[0].DocumentID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchHydratesFromPayload(t *testing.T) {
	res := chunkResult("a", "public", 0.9)
	res.Metadata["title"] = "Install Guide"
	res.Metadata["url"] = "https://docs.example.com/install"

	engine, _ := newTestEngine([]databases.SearchResult{res})

	results, err := engine.Search(context.Background(), &SearchRequest{
		Query:      "anything",
		SearchType: SearchTypeVector,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "doc-a", results[0].DocumentID)
	assert.Equal(t, "content of a", results[0].Content)
	assert.Equal(t, "Install Guide", results[0].Title)
	assert.Equal(t, "https://docs.example.com/install", results[0].URL)
}

func TestSearchAppliesTokenBudget(t *testing.T) {
	long := chunkResult("long", "public", 0.9)
	long.Metadata["content"] = packerChunk()
	second := chunkResult("second", "public", 0.8)
	second.Metadata["content"] = packerChunk()

	engine, _ := newTestEngine([]databases.SearchResult{long, second})
	engine.packer = NewPacker(estimatingCounter())

	results, err := engine.Search(context.Background(), &SearchRequest{
		Query:      "anything",
		SearchType: SearchTypeVector,
		MaxTokens:  250,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Truncated)
	assert.True(t, results[1].Truncated)
}
