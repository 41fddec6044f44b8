// Package ingest turns fetched documents into embedded, indexed chunks
// and drives the background job worker.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docvector/docvector/pkg/chunking"
	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/databases"
	"github.com/docvector/docvector/pkg/embedders"
	"github.com/docvector/docvector/pkg/errdefs"
	"github.com/docvector/docvector/pkg/extraction"
	"github.com/docvector/docvector/pkg/parser"
	"github.com/docvector/docvector/pkg/store"
	"github.com/docvector/docvector/pkg/textutil"
)

// RawDocument is fetched content before parsing.
type RawDocument struct {
	URL         string
	Path        string
	Body        []byte
	ContentType string
	FetchedAt   time.Time
}

// ProcessResult summarizes one document's trip through the pipeline.
type ProcessResult struct {
	DocumentID string
	ChunkCount int
	// Skipped is set when the content hash already exists for the
	// source and nothing was re-indexed.
	Skipped bool
}

// Pipeline converts raw documents into chunks, embeddings, and index
// points.
type Pipeline struct {
	store      *store.Store
	vectors    databases.VectorStore
	embedder   embedders.EmbedderProvider
	parsers    *parser.Registry
	collection string

	chunkCfg  config.ChunkingConfig
	ingestCfg config.IngestionConfig
}

func NewPipeline(st *store.Store, vectors databases.VectorStore, embedder embedders.EmbedderProvider, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store:      st,
		vectors:    vectors,
		embedder:   embedder,
		parsers:    parser.NewRegistry(),
		collection: cfg.Qdrant.Collection,
		chunkCfg:   cfg.Chunking,
		ingestCfg:  cfg.Ingestion,
	}
}

// ProcessDocument runs one raw document through parse, chunk, embed,
// and index. Unchanged content (same source + content hash) is skipped.
func (p *Pipeline) ProcessDocument(ctx context.Context, src *store.Source, raw RawDocument) (*ProcessResult, error) {
	parsed, err := p.parsers.Parse(raw.Body, raw.ContentType, rawLocation(raw))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeProcessing, "failed to parse document", err)
	}

	hash := textutil.ContentHash(parsed.Content)

	if existing, err := p.store.GetDocumentByHash(ctx, src.ID, hash); err == nil &&
		existing.Status == store.DocumentStatusCompleted {
		slog.Debug("skipping unchanged document",
			"source", src.Name, "url", raw.URL, "content_hash", hash)
		return &ProcessResult{DocumentID: existing.ID, ChunkCount: existing.ChunkCount, Skipped: true}, nil
	}

	doc, err := p.upsertDocumentRow(ctx, src, raw, parsed, hash)
	if err != nil {
		return nil, err
	}

	if doc.Status != store.DocumentStatusProcessing {
		if err := p.store.TransitionDocument(ctx, doc.ID, store.DocumentStatusProcessing); err != nil {
			return nil, err
		}
		doc.Status = store.DocumentStatusProcessing
	}

	chunkCount, err := p.index(ctx, src, doc, parsed)
	if err != nil {
		doc.ErrorMessage = err.Error()
		doc.Status = store.DocumentStatusFailed
		if updErr := p.store.UpdateDocument(ctx, doc); updErr != nil {
			slog.Warn("failed to record document failure", "document_id", doc.ID, "error", updErr)
		}
		return nil, err
	}

	now := time.Now().UTC()
	doc.Status = store.DocumentStatusCompleted
	doc.ErrorMessage = ""
	doc.ChunkCount = chunkCount
	doc.ProcessedAt = &now
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}

	return &ProcessResult{DocumentID: doc.ID, ChunkCount: chunkCount}, nil
}

// ReindexDocument re-chunks and re-embeds a document from its stored
// normalized text, without refetching.
func (p *Pipeline) ReindexDocument(ctx context.Context, src *store.Source, doc *store.Document) (*ProcessResult, error) {
	if doc.Content == "" {
		return nil, errdefs.Newf(errdefs.CodeProcessing,
			"document %s has no stored content to reindex", doc.ID)
	}

	if doc.Status != store.DocumentStatusProcessing {
		if err := p.store.TransitionDocument(ctx, doc.ID, store.DocumentStatusProcessing); err != nil {
			return nil, err
		}
		doc.Status = store.DocumentStatusProcessing
	}

	parsed := &parser.ParsedDocument{
		Content:  doc.Content,
		Title:    doc.Title,
		Language: doc.Language,
	}

	chunkCount, err := p.index(ctx, src, doc, parsed)
	if err != nil {
		doc.ErrorMessage = err.Error()
		doc.Status = store.DocumentStatusFailed
		if updErr := p.store.UpdateDocument(ctx, doc); updErr != nil {
			slog.Warn("failed to record document failure", "document_id", doc.ID, "error", updErr)
		}
		return nil, err
	}

	now := time.Now().UTC()
	doc.Status = store.DocumentStatusCompleted
	doc.ErrorMessage = ""
	doc.ChunkCount = chunkCount
	doc.ProcessedAt = &now
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return &ProcessResult{DocumentID: doc.ID, ChunkCount: chunkCount}, nil
}

// upsertDocumentRow creates the document row, or refreshes the
// existing (source, url) row when content changed.
func (p *Pipeline) upsertDocumentRow(ctx context.Context, src *store.Source, raw RawDocument, parsed *parser.ParsedDocument, hash string) (*store.Document, error) {
	fetchedAt := raw.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	var doc *store.Document
	if raw.URL != "" {
		existing, err := p.store.GetDocumentByURL(ctx, src.ID, raw.URL)
		if err == nil {
			doc = existing
		} else if !errdefs.Is(err, errdefs.CodeNotFound) {
			return nil, err
		}
	}

	if doc == nil {
		doc = &store.Document{
			SourceID: src.ID,
			URL:      raw.URL,
			Path:     raw.Path,
			Status:   store.DocumentStatusPending,
		}
		p.fillDocument(doc, raw, parsed, hash, fetchedAt)
		if err := p.store.CreateDocument(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	// Changed content on a known URL re-enters the pipeline; the
	// status transition to processing happens in ProcessDocument.
	p.fillDocument(doc, raw, parsed, hash, fetchedAt)
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *Pipeline) fillDocument(doc *store.Document, raw RawDocument, parsed *parser.ParsedDocument, hash string, fetchedAt time.Time) {
	doc.ContentHash = hash
	doc.Title = parsed.Title
	doc.Content = parsed.Content
	doc.ContentLength = len(parsed.Content)
	doc.Language = parsed.Language
	doc.Format = documentFormat(raw)
	doc.ChunkingStrategy = p.chunkCfg.Strategy
	doc.FetchedAt = &fetchedAt
	if len(parsed.Metadata) > 0 {
		doc.Metadata = parsed.Metadata
	}
	if author, ok := parsed.Metadata["author"].(string); ok {
		doc.Author = author
	}
}

func documentFormat(raw RawDocument) string {
	location := strings.ToLower(rawLocation(raw))
	contentType := strings.ToLower(raw.ContentType)
	switch {
	case strings.Contains(contentType, "html"),
		strings.HasSuffix(location, ".html"), strings.HasSuffix(location, ".htm"):
		return "html"
	case strings.Contains(contentType, "markdown"),
		strings.HasSuffix(location, ".md"), strings.HasSuffix(location, ".markdown"):
		return "markdown"
	default:
		return "text"
	}
}

// index chunks, embeds, and persists one processing document. Vector
// upsert happens before the relational vector-id write, so a crash
// leaves orphan points (cleaned by reconciliation) rather than chunks
// claiming vectors that do not exist.
func (p *Pipeline) index(ctx context.Context, src *store.Source, doc *store.Document, parsed *parser.ParsedDocument) (int, error) {
	if err := p.dropExistingChunks(ctx, doc.ID); err != nil {
		return 0, err
	}

	chunker, err := chunking.NewChunker(chunking.ChunkerConfig{
		Strategy:  p.chunkCfg.Strategy,
		Size:      p.chunkCfg.Size,
		Overlap:   p.chunkCfg.Overlap,
		Separator: p.chunkCfg.Separator,
	})
	if err != nil {
		return 0, errdefs.Wrap(errdefs.CodeConfiguration, "invalid chunking config", err)
	}

	pieces, err := chunker.Chunk(parsed.Content)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.CodeProcessing, "failed to chunk document", err)
	}
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks := p.buildChunks(doc, parsed, pieces)

	if err := p.vectors.EnsureCollection(ctx, p.collection, uint64(p.embedder.GetDimension())); err != nil {
		return 0, errdefs.Wrap(errdefs.CodeDatabase, "failed to ensure collection", err)
	}

	batchSize := p.ingestCfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := p.embedAndUpsert(ctx, src, doc, chunks[start:end]); err != nil {
			return 0, err
		}
	}

	if err := p.store.CreateChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (p *Pipeline) dropExistingChunks(ctx context.Context, documentID string) error {
	embeddingIDs, err := p.store.DeleteChunksByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if len(embeddingIDs) == 0 {
		return nil
	}
	if err := p.vectors.Delete(ctx, p.collection, embeddingIDs); err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to delete stale vectors", err)
	}
	return nil
}

// buildChunks attaches code detection, topics, and enrichment to the
// chunker output.
func (p *Pipeline) buildChunks(doc *store.Document, parsed *parser.ParsedDocument, pieces []chunking.Chunk) []*store.Chunk {
	chunks := make([]*store.Chunk, len(pieces))
	for i, piece := range pieces {
		chunk := &store.Chunk{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			Index:         piece.Index,
			Content:       piece.Content,
			ContentLength: len(piece.Content),
			StartChar:     piece.StartChar,
			EndChar:       piece.EndChar,
			Topics:        extraction.DetectTopics(piece.Content),
		}

		snippets := extraction.ExtractFromMarkdown(piece.Content)
		if len(snippets) > 0 {
			best := snippets[0]
			chunk.IsCodeSnippet = true
			chunk.CodeLanguage = best.Language
			chunk.CodeQualityScore = best.Scores.CodeQuality
			chunk.FormattingScore = best.Scores.Formatting
			chunk.MetadataScore = best.Scores.Metadata
			chunk.InitializationScore = best.Scores.Initialization
			chunk.Enrichment = extraction.BuildEnrichment(parsed.Title, best.Context)
		} else {
			chunk.Enrichment = extraction.BuildEnrichment(parsed.Title, "")
		}

		chunks[i] = chunk
	}

	for i := range chunks {
		if i > 0 {
			chunks[i].PrevChunkID = chunks[i-1].ID
		}
		if i < len(chunks)-1 {
			chunks[i].NextChunkID = chunks[i+1].ID
		}
	}
	return chunks
}

// embedAndUpsert embeds one batch and writes its points, then stamps
// the chunks with their vector ids.
func (p *Pipeline) embedAndUpsert(ctx context.Context, src *store.Source, doc *store.Document, batch []*store.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = embeddingText(chunk)
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeEmbedding, "failed to embed chunk batch", err)
	}
	if len(vectors) != len(batch) {
		return errdefs.Newf(errdefs.CodeEmbedding,
			"expected %d embeddings, got %d", len(batch), len(vectors))
	}

	ids := make([]string, len(batch))
	payloads := make([]map[string]interface{}, len(batch))
	for i, chunk := range batch {
		ids[i] = uuid.NewString()
		payloads[i] = p.payload(src, doc, chunk)
	}

	if err := p.vectors.Upsert(ctx, p.collection, ids, vectors, payloads); err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to upsert vectors", err)
	}

	now := time.Now().UTC()
	model := p.embedder.GetModelName()
	for i, chunk := range batch {
		chunk.EmbeddingID = ids[i]
		chunk.EmbeddingModel = model
		chunk.EmbeddedAt = &now
	}
	return nil
}

// embeddingText prefixes the chunk content with its enrichment trail
// so headings count toward similarity.
func embeddingText(chunk *store.Chunk) string {
	if chunk.Enrichment == "" {
		return chunk.Content
	}
	return chunk.Enrichment + "\n\n" + chunk.Content
}

// payload carries everything search needs without a relational
// round-trip.
func (p *Pipeline) payload(src *store.Source, doc *store.Document, chunk *store.Chunk) map[string]interface{} {
	payload := map[string]interface{}{
		"chunk_id":     chunk.ID,
		"document_id":  doc.ID,
		"content":      chunk.Content,
		"access_level": sourceAccessLevel(src),
	}
	if doc.Title != "" {
		payload["title"] = doc.Title
	}
	if doc.URL != "" {
		payload["url"] = doc.URL
	}
	if doc.Language != "" {
		payload["language"] = doc.Language
	}
	if src.LibraryID != "" {
		payload["library_id"] = src.LibraryID
	}
	if src.Version != "" {
		payload["version"] = src.Version
	}
	if len(chunk.Topics) > 0 {
		topics := make([]interface{}, len(chunk.Topics))
		for i, topic := range chunk.Topics {
			topics[i] = topic
		}
		payload["topics"] = topics
	}
	if chunk.IsCodeSnippet {
		payload["is_code_snippet"] = true
		if chunk.CodeLanguage != "" {
			payload["code_language"] = chunk.CodeLanguage
		}
		payload["code_quality_score"] = chunk.CodeQualityScore
		payload["formatting_score"] = chunk.FormattingScore
		payload["metadata_score"] = chunk.MetadataScore
		payload["initialization_score"] = chunk.InitializationScore
	}
	return payload
}

func sourceAccessLevel(src *store.Source) string {
	if src.Config != nil {
		if level, ok := src.Config["access_level"].(string); ok && level != "" {
			return level
		}
	}
	return "public"
}

func rawLocation(raw RawDocument) string {
	if raw.URL != "" {
		return raw.URL
	}
	return raw.Path
}
