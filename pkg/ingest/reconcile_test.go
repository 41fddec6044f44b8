package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvector/docvector/pkg/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *Pipeline, *store.Store, *fakeVectorStore, string) {
	t.Helper()
	cfg := testConfig(t)
	cfg.Ingestion.StaleAfter = time.Millisecond

	st, err := store.Open(context.Background(), &cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	vectors := newFakeVectorStore()
	pipeline := NewPipeline(st, vectors, &fakeEmbedder{}, cfg)
	return NewReconciler(st, vectors, pipeline, cfg), pipeline, st, vectors, cfg.Qdrant.Collection
}

func firstPointID(t *testing.T, vectors *fakeVectorStore, collection, documentID string) string {
	t.Helper()
	vectors.mu.Lock()
	defer vectors.mu.Unlock()
	for id, point := range vectors.points[collection] {
		if point.payload["document_id"] == documentID {
			return id
		}
	}
	t.Fatalf("no point found for document %s", documentID)
	return ""
}

func TestSweepFailsStaleProcessingDocuments(t *testing.T) {
	r, _, st, _, _ := newTestReconciler(t)
	ctx := context.Background()
	src := webSource(t, st)

	doc := &store.Document{
		SourceID: src.ID,
		URL:      "https://docs.example.com/stuck",
		Content:  "a page that never finished processing",
		Status:   store.DocumentStatusProcessing,
	}
	require.NoError(t, st.CreateDocument(ctx, doc))

	// Let the doc age past the millisecond stale window.
	time.Sleep(10 * time.Millisecond)

	result, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.StaleFailed)

	got, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DocumentStatusFailed, got.Status)
	assert.Equal(t, "processing timed out", got.ErrorMessage)
}

func TestSweepDeletesOrphanPoints(t *testing.T) {
	r, _, st, vectors, collection := newTestReconciler(t)
	ctx := context.Background()
	src := webSource(t, st)

	doc := &store.Document{
		SourceID: src.ID,
		URL:      "https://docs.example.com/crashed",
		Content:  "points were written but the chunk rows never landed",
		Status:   store.DocumentStatusFailed,
	}
	require.NoError(t, st.CreateDocument(ctx, doc))

	// Simulate a crash between the vector upsert and the chunk insert.
	require.NoError(t, vectors.EnsureCollection(ctx, collection, 3))
	require.NoError(t, vectors.Upsert(ctx, collection,
		[]string{"orphan-1", "orphan-2"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]map[string]interface{}{
			{"document_id": doc.ID},
			{"document_id": doc.ID},
		}))

	result, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.OrphansDeleted)
	assert.Equal(t, 0, vectors.pointsForDocument(collection, doc.ID))
}

func TestSweepReindexesCountMismatch(t *testing.T) {
	r, pipeline, st, vectors, collection := newTestReconciler(t)
	ctx := context.Background()
	src := webSource(t, st)

	res, err := pipeline.ProcessDocument(ctx, src, RawDocument{
		URL:         "https://docs.example.com/guide",
		Body:        []byte(guideHTML),
		ContentType: "text/html",
	})
	require.NoError(t, err)
	require.Greater(t, res.ChunkCount, 0)

	// Lose one point so index and store disagree.
	lost := firstPointID(t, vectors, collection, res.DocumentID)
	require.NoError(t, vectors.Delete(ctx, collection, []string{lost}))

	result, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocsReindexed)
	assert.Equal(t, 0, result.ReindexFailures)
	assert.Equal(t, res.ChunkCount, vectors.pointsForDocument(collection, res.DocumentID))

	doc, err := st.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, store.DocumentStatusCompleted, doc.Status)
}

func TestSweepLeavesHealthyDocumentsAlone(t *testing.T) {
	r, pipeline, st, vectors, collection := newTestReconciler(t)
	ctx := context.Background()
	src := webSource(t, st)

	res, err := pipeline.ProcessDocument(ctx, src, RawDocument{
		URL:         "https://docs.example.com/guide",
		Body:        []byte(guideHTML),
		ContentType: "text/html",
	})
	require.NoError(t, err)

	result, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocsInspected)
	assert.Equal(t, 0, result.DocsReindexed)
	assert.Equal(t, 0, result.OrphansDeleted)
	assert.Equal(t, res.ChunkCount, vectors.pointsForDocument(collection, res.DocumentID))
}
