package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/databases"
	"github.com/docvector/docvector/pkg/store"
)

// fakeVectorStore is an in-memory VectorStore good enough for pipeline
// tests: it stores points and filters on payload equality.
type fakeVectorStore struct {
	mu          sync.Mutex
	collections map[string]uint64
	points      map[string]map[string]fakePoint

	upsertErr error
}

type fakePoint struct {
	vector  []float32
	payload map[string]interface{}
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		collections: make(map[string]uint64),
		points:      make(map[string]map[string]fakePoint),
	}
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[collection]; !ok {
		f.collections[collection] = vectorSize
		f.points[collection] = make(map[string]fakePoint)
	}
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32, payloads []map[string]interface{}) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return fmt.Errorf("length mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range ids {
		f.points[collection][id] = fakePoint{vector: vectors[i], payload: payloads[i]}
	}
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}, scoreThreshold float32) ([]databases.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []databases.SearchResult
	for id, point := range f.points[collection] {
		if !f.matches(point, filter) {
			continue
		}
		results = append(results, databases.SearchResult{
			ID: id, Metadata: point.payload, Score: 1,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (f *fakeVectorStore) matches(point fakePoint, filter map[string]interface{}) bool {
	for key, want := range filter {
		if point.payload[key] != want {
			return false
		}
	}
	return true
}

func (f *fakeVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.points[collection], id)
	}
	return nil
}

func (f *fakeVectorStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, point := range f.points[collection] {
		if f.matches(point, filter) {
			delete(f.points[collection], id)
		}
	}
	return nil
}

func (f *fakeVectorStore) Get(ctx context.Context, collection string, ids []string) ([]databases.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []databases.SearchResult
	for _, id := range ids {
		if point, ok := f.points[collection][id]; ok {
			results = append(results, databases.SearchResult{ID: id, Metadata: point.payload})
		}
	}
	return results, nil
}

func (f *fakeVectorStore) Count(ctx context.Context, collection string, filter map[string]interface{}) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count uint64
	for _, point := range f.points[collection] {
		if f.matches(point, filter) {
			count++
		}
	}
	return count, nil
}

func (f *fakeVectorStore) Close() error { return nil }

func (f *fakeVectorStore) pointsForDocument(collection, documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, point := range f.points[collection] {
		if point.payload["document_id"] == documentID {
			count++
		}
	}
	return count
}

// fakeEmbedder returns constant-dimension deterministic vectors.
type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return f.Embed(ctx, query)
}

func (f *fakeEmbedder) GetDimension() int    { return 3 }
func (f *fakeEmbedder) GetModelName() string { return "fake-model" }
func (f *fakeEmbedder) Close() error         { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Database.Driver = "sqlite"
	cfg.Database.URL = filepath.Join(t.TempDir(), "ingest.db")
	cfg.Chunking.Strategy = "semantic"
	cfg.Chunking.Size = 200
	cfg.Chunking.Overlap = 20
	return cfg
}

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, *fakeVectorStore, *config.Config) {
	t.Helper()
	cfg := testConfig(t)

	st, err := store.Open(context.Background(), &cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	vectors := newFakeVectorStore()
	pipeline := NewPipeline(st, vectors, &fakeEmbedder{}, cfg)
	return pipeline, st, vectors, cfg
}

func webSource(t *testing.T, st *store.Store) *store.Source {
	t.Helper()
	src := &store.Source{
		Name: "docs-" + t.Name(),
		Type: store.SourceTypeWeb,
		Config: map[string]interface{}{
			"start_url": "https://docs.example.com",
		},
	}
	require.NoError(t, st.CreateSource(context.Background(), src))
	return src
}

const guideHTML = `<html><head><title>Install Guide</title></head><body><article>
<h1>Install Guide</h1>
<p>This page explains how to install the docvector service and verify the
installation end to end. The steps below assume a Linux host with network
access to the package registry and a recent container runtime available.</p>
<h2>Requirements</h2>
<p>A database, a vector index, and an embedding model runner must all be
reachable before starting the service for the first time.</p>
</article></body></html>`

func TestProcessDocumentHappyPath(t *testing.T) {
	pipeline, st, vectors, cfg := newTestPipeline(t)
	ctx := context.Background()
	src := webSource(t, st)

	res, err := pipeline.ProcessDocument(ctx, src, RawDocument{
		URL:         "https://docs.example.com/install",
		Body:        []byte(guideHTML),
		ContentType: "text/html; charset=utf-8",
	})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Greater(t, res.ChunkCount, 0)

	doc, err := st.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, store.DocumentStatusCompleted, doc.Status)
	assert.Equal(t, "Install Guide", doc.Title)
	assert.Equal(t, "html", doc.Format)
	assert.Equal(t, res.ChunkCount, doc.ChunkCount)
	assert.NotEmpty(t, doc.ContentHash)
	assert.NotNil(t, doc.ProcessedAt)

	chunks, err := st.ListChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, res.ChunkCount)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk.EmbeddingID)
		assert.Equal(t, "fake-model", chunk.EmbeddingModel)
		assert.NotNil(t, chunk.EmbeddedAt)
	}

	assert.Equal(t, res.ChunkCount, vectors.pointsForDocument(cfg.Qdrant.Collection, doc.ID))
}

func TestProcessDocumentDedupe(t *testing.T) {
	pipeline, st, vectors, cfg := newTestPipeline(t)
	ctx := context.Background()
	src := webSource(t, st)

	raw := RawDocument{
		URL:         "https://docs.example.com/install",
		Body:        []byte(guideHTML),
		ContentType: "text/html",
	}

	first, err := pipeline.ProcessDocument(ctx, src, raw)
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := pipeline.ProcessDocument(ctx, src, raw)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, first.ChunkCount, second.ChunkCount)

	// Exactly one document row for the source.
	docs, err := st.ListDocumentsBySource(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, first.ChunkCount, docs[0].ChunkCount)

	// Exactly one set of points for the document.
	assert.Equal(t, first.ChunkCount,
		vectors.pointsForDocument(cfg.Qdrant.Collection, first.DocumentID))
}

func TestProcessDocumentChangedContentReplacesChunks(t *testing.T) {
	pipeline, st, vectors, cfg := newTestPipeline(t)
	ctx := context.Background()
	src := webSource(t, st)

	url := "https://docs.example.com/changelog"
	first, err := pipeline.ProcessDocument(ctx, src, RawDocument{
		URL: url, Body: []byte(guideHTML), ContentType: "text/html",
	})
	require.NoError(t, err)

	changed := []byte(`<html><head><title>Changelog</title></head><body><article>
<h1>Changelog</h1>
<p>Version two point oh rewrites the ranking layer and changes every default
listed on this page, so the previous revision of this document is obsolete
and must be replaced in the index without leaving stale points behind.</p>
</article></body></html>`)

	second, err := pipeline.ProcessDocument(ctx, src, RawDocument{
		URL: url, Body: changed, ContentType: "text/html",
	})
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.Equal(t, first.DocumentID, second.DocumentID)

	docs, err := st.ListDocumentsBySource(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Changelog", docs[0].Title)

	// Old points replaced, not accumulated.
	assert.Equal(t, second.ChunkCount,
		vectors.pointsForDocument(cfg.Qdrant.Collection, second.DocumentID))
}

func TestProcessDocumentFailureMarksFailed(t *testing.T) {
	pipeline, st, vectors, _ := newTestPipeline(t)
	ctx := context.Background()
	src := webSource(t, st)

	vectors.upsertErr = fmt.Errorf("index unavailable")

	_, err := pipeline.ProcessDocument(ctx, src, RawDocument{
		URL: "https://docs.example.com/broken", Body: []byte(guideHTML),
		ContentType: "text/html",
	})
	require.Error(t, err)

	docs, err := st.ListDocumentsBySource(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, store.DocumentStatusFailed, docs[0].Status)
	assert.NotEmpty(t, docs[0].ErrorMessage)
}

func TestPayloadCarriesAccessLevelAndTopics(t *testing.T) {
	pipeline, st, vectors, cfg := newTestPipeline(t)
	ctx := context.Background()

	src := &store.Source{
		Name: "private-docs",
		Type: store.SourceTypeWeb,
		Config: map[string]interface{}{
			"start_url":    "https://internal.example.com",
			"access_level": "private",
		},
	}
	require.NoError(t, st.CreateSource(ctx, src))

	md := "# Install\n\nRun pip install docvector to install the package on any host."
	res, err := pipeline.ProcessDocument(ctx, src, RawDocument{
		URL: "https://internal.example.com/install.md", Body: []byte(md),
		ContentType: "text/markdown",
	})
	require.NoError(t, err)

	vectors.mu.Lock()
	defer vectors.mu.Unlock()
	found := false
	for _, point := range vectors.points[cfg.Qdrant.Collection] {
		if point.payload["document_id"] != res.DocumentID {
			continue
		}
		found = true
		assert.Equal(t, "private", point.payload["access_level"])
		assert.NotEmpty(t, point.payload["chunk_id"])
		assert.NotEmpty(t, point.payload["content"])
		if topics, ok := point.payload["topics"].([]interface{}); ok {
			assert.Contains(t, topics, "installation")
		}
	}
	assert.True(t, found, "no points written for document")
}

func TestReindexDocument(t *testing.T) {
	pipeline, st, vectors, cfg := newTestPipeline(t)
	ctx := context.Background()
	src := webSource(t, st)

	res, err := pipeline.ProcessDocument(ctx, src, RawDocument{
		URL: "https://docs.example.com/guide", Body: []byte(guideHTML),
		ContentType: "text/html",
	})
	require.NoError(t, err)

	doc, err := st.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)

	again, err := pipeline.ReindexDocument(ctx, src, doc)
	require.NoError(t, err)
	assert.Equal(t, res.ChunkCount, again.ChunkCount)
	assert.Equal(t, res.ChunkCount,
		vectors.pointsForDocument(cfg.Qdrant.Collection, doc.ID))
}
