package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/docvector/docvector/pkg/errdefs"
)

const chunkColumns = `id, document_id, chunk_index, content, content_length,
	start_char, end_char, is_code_snippet, code_language, topics, enrichment,
	relevance_score, code_quality_score, formatting_score, metadata_score,
	initialization_score, prev_chunk_id, next_chunk_id, metadata, embedding_id,
	embedding_model, embedded_at, created_at, updated_at`

// CreateChunks inserts a document's chunks in one transaction.
func (s *Store) CreateChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return errdefs.Wrap(errdefs.CodeValidation, "invalid chunk", err)
		}
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind(`INSERT INTO chunks (` + chunkColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		now := time.Now().UTC()
		for _, c := range chunks {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.CreatedAt = now
			c.UpdatedAt = now

			topics, err := encodeStrings(c.Topics)
			if err != nil {
				return err
			}
			metadata, err := encodeJSON(c.Metadata)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, query,
				c.ID, c.DocumentID, c.Index, c.Content, c.ContentLength,
				c.StartChar, c.EndChar, c.IsCodeSnippet, c.CodeLanguage,
				topics, c.Enrichment, c.RelevanceScore, c.CodeQualityScore,
				c.FormattingScore, c.MetadataScore, c.InitializationScore,
				c.PrevChunkID, c.NextChunkID, metadata, c.EmbeddingID,
				c.EmbeddingModel, nullTime(c.EmbeddedAt), c.CreatedAt, c.UpdatedAt)
			if err != nil {
				return errdefs.Wrap(errdefs.CodeDatabase, "failed to insert chunk", err)
			}
		}
		return nil
	})
}

// GetChunk fetches a chunk by primary key.
func (s *Store) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	query := s.rebind(`SELECT ` + chunkColumns + ` FROM chunks WHERE id = ?`)
	chunk, err := scanChunkRow(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.New(errdefs.CodeNotFound, "chunk not found")
	}
	return chunk, err
}

// ListChunksByDocument returns a document's chunks ordered by index.
func (s *Store) ListChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	query := s.rebind(`SELECT ` + chunkColumns + ` FROM chunks
		WHERE document_id = ? ORDER BY chunk_index`)
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to list chunks", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		chunk, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// CountChunksByDocument returns how many chunks a document has.
func (s *Store) CountChunksByDocument(ctx context.Context, documentID string) (int, error) {
	query := s.rebind(`SELECT COUNT(*) FROM chunks WHERE document_id = ?`)
	var count int
	if err := s.db.QueryRowContext(ctx, query, documentID).Scan(&count); err != nil {
		return 0, errdefs.Wrap(errdefs.CodeDatabase, "failed to count chunks", err)
	}
	return count, nil
}

// DeleteChunksByDocument removes every chunk of a document and returns
// their vector-index ids so the caller can clean the index.
func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) ([]string, error) {
	query := s.rebind(`SELECT embedding_id FROM chunks
		WHERE document_id = ? AND embedding_id != ''`)
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to collect embedding ids", err)
	}
	var embeddingIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to scan embedding id", err)
		}
		embeddingIDs = append(embeddingIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to collect embedding ids", err)
	}

	del := s.rebind(`DELETE FROM chunks WHERE document_id = ?`)
	if _, err := s.db.ExecContext(ctx, del, documentID); err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to delete chunks", err)
	}
	return embeddingIDs, nil
}

// ListEmbeddingIDsByDocument returns the vector-index ids currently
// recorded for a document's chunks.
func (s *Store) ListEmbeddingIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	query := s.rebind(`SELECT embedding_id FROM chunks
		WHERE document_id = ? AND embedding_id != ''`)
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to list embedding ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to scan embedding id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetChunksByIDs hydrates chunks in the order the ids are given.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, 2*len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := s.rebind(`SELECT ` + chunkColumns + ` FROM chunks
		WHERE id IN (` + string(placeholders) + `)`)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to get chunks", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		chunk, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		byID[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chunks := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func scanChunkRow(row rowScanner) (*Chunk, error) {
	var c Chunk
	var topics, metadata string
	var embeddedAt sql.NullTime
	err := row.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.ContentLength,
		&c.StartChar, &c.EndChar, &c.IsCodeSnippet, &c.CodeLanguage, &topics,
		&c.Enrichment, &c.RelevanceScore, &c.CodeQualityScore, &c.FormattingScore,
		&c.MetadataScore, &c.InitializationScore, &c.PrevChunkID, &c.NextChunkID,
		&metadata, &c.EmbeddingID, &c.EmbeddingModel, &embeddedAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to scan chunk", err)
	}
	c.Topics = decodeStrings(topics)
	c.Metadata = decodeMap(metadata)
	c.EmbeddedAt = scanNullTime(embeddedAt)
	return &c, nil
}
