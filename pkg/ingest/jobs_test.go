package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvector/docvector/pkg/store"
)

func newTestWorker(t *testing.T) (*Worker, *store.Store, *fakeVectorStore) {
	t.Helper()
	cfg := testConfig(t)

	st, err := store.Open(context.Background(), &cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	vectors := newFakeVectorStore()
	pipeline := NewPipeline(st, vectors, &fakeEmbedder{}, cfg)
	return NewWorker(st, pipeline, cfg), st, vectors
}

func writeDocsTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"install.md": "# Install\n\nRun pip install docvector to install the service on a fresh host.",
		"usage.md":   "# Usage\n\nStart the daemon and issue a query against the local search endpoint.",
		"notes.bin":  "binary payload that must be ignored",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func TestWorkerRunsFileSyncJob(t *testing.T) {
	w, st, _ := newTestWorker(t)
	ctx := context.Background()

	src := &store.Source{
		Name:   "local-docs",
		Type:   store.SourceTypeFile,
		Config: map[string]interface{}{"path": writeDocsTree(t)},
	}
	require.NoError(t, st.CreateSource(ctx, src))

	job := &store.IngestionJob{SourceID: src.ID, JobType: store.JobTypeFullSync}
	require.NoError(t, st.CreateJob(ctx, job))
	require.NoError(t, w.RunJobByID(ctx, job.ID))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.TotalDocuments)
	assert.Equal(t, 2, got.ProcessedDocuments)
	assert.Equal(t, 0, got.FailedDocuments)
	assert.Greater(t, got.TotalChunks, 0)
	assert.NotNil(t, got.CompletedAt)

	docs, err := st.ListDocumentsBySource(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// Source is marked synced after a successful run.
	updated, err := st.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SourceStatusActive, updated.Status)
	assert.NotNil(t, updated.LastSyncedAt)
}

func TestWorkerLatchesSourceErrorWhenAllFail(t *testing.T) {
	w, st, vectors := newTestWorker(t)
	ctx := context.Background()

	vectors.upsertErr = assert.AnError

	src := &store.Source{
		Name:   "broken-docs",
		Type:   store.SourceTypeFile,
		Config: map[string]interface{}{"path": writeDocsTree(t)},
	}
	require.NoError(t, st.CreateSource(ctx, src))

	job := &store.IngestionJob{SourceID: src.ID, JobType: store.JobTypeFullSync}
	require.NoError(t, st.CreateJob(ctx, job))
	require.NoError(t, w.RunJobByID(ctx, job.ID))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.FailedDocuments)
	assert.Equal(t, 0, got.ProcessedDocuments)

	updated, err := st.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SourceStatusError, updated.Status)
	assert.NotEmpty(t, updated.ErrorMessage)
}

func TestWorkerReindexJob(t *testing.T) {
	w, st, vectors := newTestWorker(t)
	ctx := context.Background()

	src := &store.Source{
		Name:   "reindex-docs",
		Type:   store.SourceTypeFile,
		Config: map[string]interface{}{"path": writeDocsTree(t)},
	}
	require.NoError(t, st.CreateSource(ctx, src))

	sync := &store.IngestionJob{SourceID: src.ID, JobType: store.JobTypeFullSync}
	require.NoError(t, st.CreateJob(ctx, sync))
	require.NoError(t, w.RunJobByID(ctx, sync.ID))

	before := len(vectors.points["docvector_chunks"])
	require.Greater(t, before, 0)

	reindex := &store.IngestionJob{SourceID: src.ID, JobType: store.JobTypeReindex}
	require.NoError(t, st.CreateJob(ctx, reindex))
	require.NoError(t, w.RunJobByID(ctx, reindex.ID))

	got, err := st.GetJob(ctx, reindex.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.ProcessedDocuments)

	// Point count is stable across reindex: replaced, not duplicated.
	assert.Equal(t, before, len(vectors.points["docvector_chunks"]))
}

func TestWorkerRejectsSourcelessSync(t *testing.T) {
	w, st, _ := newTestWorker(t)
	ctx := context.Background()

	job := &store.IngestionJob{JobType: store.JobTypeManual}
	require.NoError(t, st.CreateJob(ctx, job))
	require.NoError(t, w.RunJobByID(ctx, job.ID))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestWorkerHonoursCancellation(t *testing.T) {
	w, st, _ := newTestWorker(t)
	ctx := context.Background()

	src := &store.Source{
		Name:   "cancelled-docs",
		Type:   store.SourceTypeFile,
		Config: map[string]interface{}{"path": writeDocsTree(t)},
	}
	require.NoError(t, st.CreateSource(ctx, src))

	job := &store.IngestionJob{SourceID: src.ID, JobType: store.JobTypeFullSync}
	require.NoError(t, st.CreateJob(ctx, job))

	// Cancel before the worker picks it up: RunJobByID must refuse.
	require.NoError(t, st.CancelJob(ctx, job.ID))
	err := w.RunJobByID(ctx, job.ID)
	require.Error(t, err)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusCancelled, got.Status)
}
