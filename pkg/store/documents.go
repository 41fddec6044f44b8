package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/docvector/docvector/pkg/errdefs"
)

const documentColumns = `id, source_id, url, path, content_hash, title, content,
	content_length, metadata, language, format, status, error_message, chunk_count,
	chunking_strategy, fetched_at, processed_at, author, published_at, modified_at,
	created_at, updated_at`

// CreateDocument inserts a document in pending status.
func (s *Store) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.Status == "" {
		doc.Status = DocumentStatusPending
	}
	if err := doc.Validate(); err != nil {
		return errdefs.Wrap(errdefs.CodeValidation, "invalid document", err)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if doc.URL != "" {
		if existing, err := s.GetDocumentByURL(ctx, doc.SourceID, doc.URL); err == nil && existing != nil {
			return errdefs.Newf(errdefs.CodeValidation,
				"document already exists for url %s", doc.URL)
		}
	}

	metadata, err := encodeJSON(doc.Metadata)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.SourceID, doc.URL, doc.Path, doc.ContentHash, doc.Title,
		doc.Content, doc.ContentLength, metadata, doc.Language, doc.Format,
		string(doc.Status), doc.ErrorMessage, doc.ChunkCount, doc.ChunkingStrategy,
		nullTime(doc.FetchedAt), nullTime(doc.ProcessedAt), doc.Author,
		nullTime(doc.PublishedAt), nullTime(doc.ModifiedAt),
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to create document", err)
	}
	return nil
}

// GetDocument fetches a document by primary key.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	query := s.rebind(`SELECT ` + documentColumns + ` FROM documents WHERE id = ?`)
	return s.scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// GetDocumentByURL fetches the document for (source, url).
func (s *Store) GetDocumentByURL(ctx context.Context, sourceID, url string) (*Document, error) {
	query := s.rebind(`SELECT ` + documentColumns + ` FROM documents
		WHERE source_id = ? AND url = ?`)
	return s.scanDocument(s.db.QueryRowContext(ctx, query, sourceID, url))
}

// GetDocumentByHash fetches a document by (source, content hash),
// which is how ingestion detects unchanged content.
func (s *Store) GetDocumentByHash(ctx context.Context, sourceID, contentHash string) (*Document, error) {
	query := s.rebind(`SELECT ` + documentColumns + ` FROM documents
		WHERE source_id = ? AND content_hash = ?
		ORDER BY created_at LIMIT 1`)
	return s.scanDocument(s.db.QueryRowContext(ctx, query, sourceID, contentHash))
}

// UpdateDocument persists mutable fields.
func (s *Store) UpdateDocument(ctx context.Context, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return errdefs.Wrap(errdefs.CodeValidation, "invalid document", err)
	}
	doc.UpdatedAt = time.Now().UTC()

	metadata, err := encodeJSON(doc.Metadata)
	if err != nil {
		return err
	}

	query := s.rebind(`UPDATE documents
		SET url = ?, path = ?, content_hash = ?, title = ?, content = ?,
			content_length = ?, metadata = ?, language = ?, format = ?, status = ?,
			error_message = ?, chunk_count = ?, chunking_strategy = ?, fetched_at = ?,
			processed_at = ?, author = ?, published_at = ?, modified_at = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		doc.URL, doc.Path, doc.ContentHash, doc.Title, doc.Content,
		doc.ContentLength, metadata, doc.Language, doc.Format, string(doc.Status),
		doc.ErrorMessage, doc.ChunkCount, doc.ChunkingStrategy, nullTime(doc.FetchedAt),
		nullTime(doc.ProcessedAt), doc.Author, nullTime(doc.PublishedAt),
		nullTime(doc.ModifiedAt), doc.UpdatedAt, doc.ID)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to update document", err)
	}
	return requireRowsAffected(res, "document", doc.ID)
}

// TransitionDocument moves a document between statuses, enforcing the
// allowed transitions.
func (s *Store) TransitionDocument(ctx context.Context, id string, next DocumentStatus) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !doc.Status.CanTransition(next) {
		return errdefs.Newf(errdefs.CodeValidation,
			"document status cannot transition %s -> %s", doc.Status, next)
	}

	query := s.rebind(`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, string(next), time.Now().UTC(), id)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to transition document", err)
	}
	return requireRowsAffected(res, "document", id)
}

// DeleteDocument removes a document; its chunks cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM documents WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to delete document", err)
	}
	return requireRowsAffected(res, "document", id)
}

// ListDocumentsBySource returns a source's documents, newest first.
func (s *Store) ListDocumentsBySource(ctx context.Context, sourceID string) ([]*Document, error) {
	query := s.rebind(`SELECT ` + documentColumns + ` FROM documents
		WHERE source_id = ? ORDER BY created_at DESC`)
	rows, err := s.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to list documents", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocumentsBySource returns how many documents a source has.
func (s *Store) CountDocumentsBySource(ctx context.Context, sourceID string) (int, error) {
	query := s.rebind(`SELECT COUNT(*) FROM documents WHERE source_id = ?`)
	var count int
	if err := s.db.QueryRowContext(ctx, query, sourceID).Scan(&count); err != nil {
		return 0, errdefs.Wrap(errdefs.CodeDatabase, "failed to count documents", err)
	}
	return count, nil
}

// ListStaleProcessingDocuments returns documents stuck in processing
// since before the cutoff. Used by the reconciliation sweep.
func (s *Store) ListStaleProcessingDocuments(ctx context.Context, cutoff time.Time) ([]*Document, error) {
	query := s.rebind(`SELECT ` + documentColumns + ` FROM documents
		WHERE status = ? AND updated_at < ? ORDER BY updated_at`)
	rows, err := s.db.QueryContext(ctx, query, string(DocumentStatusProcessing), cutoff)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to list stale documents", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) scanDocument(row *sql.Row) (*Document, error) {
	doc, err := scanDocumentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.New(errdefs.CodeNotFound, "document not found")
	}
	return doc, err
}

func scanDocumentRow(row rowScanner) (*Document, error) {
	var doc Document
	var status, metadata string
	var fetchedAt, processedAt, publishedAt, modifiedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.SourceID, &doc.URL, &doc.Path, &doc.ContentHash,
		&doc.Title, &doc.Content, &doc.ContentLength, &metadata, &doc.Language,
		&doc.Format, &status, &doc.ErrorMessage, &doc.ChunkCount,
		&doc.ChunkingStrategy, &fetchedAt, &processedAt, &doc.Author,
		&publishedAt, &modifiedAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to scan document", err)
	}
	doc.Status = DocumentStatus(status)
	doc.Metadata = decodeMap(metadata)
	doc.FetchedAt = scanNullTime(fetchedAt)
	doc.ProcessedAt = scanNullTime(processedAt)
	doc.PublishedAt = scanNullTime(publishedAt)
	doc.ModifiedAt = scanNullTime(modifiedAt)
	return &doc, nil
}
