package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/databases"
	"github.com/docvector/docvector/pkg/store"
)

// Reconciler repairs drift between the relational store and the vector
// index: stale processing documents, orphaned index points, and
// completed documents whose point count disagrees with their chunks.
type Reconciler struct {
	store      *store.Store
	vectors    databases.VectorStore
	pipeline   *Pipeline
	collection string
	staleAfter time.Duration
}

func NewReconciler(st *store.Store, vectors databases.VectorStore, pipeline *Pipeline, cfg *config.Config) *Reconciler {
	staleAfter := cfg.Ingestion.StaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &Reconciler{
		store:      st,
		vectors:    vectors,
		pipeline:   pipeline,
		collection: cfg.Qdrant.Collection,
		staleAfter: staleAfter,
	}
}

// SweepResult counts what one reconciliation pass touched.
type SweepResult struct {
	StaleFailed     int
	OrphansDeleted  int
	DocsReindexed   int
	DocsInspected   int
	ReindexFailures int
}

// Sweep runs one reconciliation pass over every source.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}

	if err := r.failStaleProcessing(ctx, result); err != nil {
		return result, err
	}

	sources, err := r.store.ListSources(ctx)
	if err != nil {
		return result, err
	}
	for _, src := range sources {
		docs, err := r.store.ListDocumentsBySource(ctx, src.ID)
		if err != nil {
			return result, err
		}
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.DocsInspected++
			r.reconcileDocument(ctx, src, doc, result)
		}
	}

	slog.Info("reconciliation sweep finished",
		"inspected", result.DocsInspected, "stale_failed", result.StaleFailed,
		"orphans_deleted", result.OrphansDeleted, "reindexed", result.DocsReindexed)
	return result, nil
}

// failStaleProcessing marks documents stuck in processing as failed so
// the next sync can retry them.
func (r *Reconciler) failStaleProcessing(ctx context.Context, result *SweepResult) error {
	cutoff := time.Now().UTC().Add(-r.staleAfter)
	stale, err := r.store.ListStaleProcessingDocuments(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, doc := range stale {
		doc.Status = store.DocumentStatusFailed
		doc.ErrorMessage = "processing timed out"
		if err := r.store.UpdateDocument(ctx, doc); err != nil {
			slog.Warn("failed to fail stale document", "document_id", doc.ID, "error", err)
			continue
		}
		result.StaleFailed++
	}
	return nil
}

func (r *Reconciler) reconcileDocument(ctx context.Context, src *store.Source, doc *store.Document, result *SweepResult) {
	pointCount, err := r.vectors.Count(ctx, r.collection,
		map[string]interface{}{"document_id": doc.ID})
	if err != nil {
		slog.Warn("failed to count index points", "document_id", doc.ID, "error", err)
		return
	}

	expected, err := r.store.ListEmbeddingIDsByDocument(ctx, doc.ID)
	if err != nil {
		slog.Warn("failed to list embedding ids", "document_id", doc.ID, "error", err)
		return
	}

	switch {
	case doc.Status != store.DocumentStatusCompleted && pointCount > 0 && len(expected) == 0:
		// Points written before a crash, never claimed by chunks.
		if err := r.deleteDocumentPoints(ctx, doc.ID); err != nil {
			slog.Warn("failed to delete orphan points", "document_id", doc.ID, "error", err)
			return
		}
		result.OrphansDeleted += int(pointCount)

	case doc.Status == store.DocumentStatusCompleted && pointCount != uint64(len(expected)):
		// Index and store disagree; rebuilding from stored text is the
		// only safe repair.
		if err := r.deleteDocumentPoints(ctx, doc.ID); err != nil {
			slog.Warn("failed to reset document points", "document_id", doc.ID, "error", err)
			return
		}
		if _, err := r.pipeline.ReindexDocument(ctx, src, doc); err != nil {
			slog.Warn("reconciliation reindex failed", "document_id", doc.ID, "error", err)
			result.ReindexFailures++
			return
		}
		result.DocsReindexed++
	}
}

func (r *Reconciler) deleteDocumentPoints(ctx context.Context, documentID string) error {
	return r.vectors.DeleteByFilter(ctx, r.collection,
		map[string]interface{}{"document_id": documentID})
}
