package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/docvector/docvector/pkg/errdefs"
)

const sourceColumns = `id, name, type, library_id, version, config, status,
	sync_frequency, last_synced_at, error_message, created_at, updated_at`

// CreateSource inserts a source, defaulting status to active.
func (s *Store) CreateSource(ctx context.Context, src *Source) error {
	if src.Status == "" {
		src.Status = SourceStatusActive
	}
	if err := src.Validate(); err != nil {
		return errdefs.Wrap(errdefs.CodeValidation, "invalid source", err)
	}
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	src.CreatedAt = now
	src.UpdatedAt = now

	if existing, err := s.GetSourceByName(ctx, src.Name); err == nil && existing != nil {
		return errdefs.Newf(errdefs.CodeSourceExists, "source %s already exists", src.Name)
	}

	config, err := encodeJSON(src.Config)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO sources (` + sourceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		src.ID, src.Name, string(src.Type), nullString(src.LibraryID), src.Version,
		config, string(src.Status), src.SyncFrequency, nullTime(src.LastSyncedAt),
		src.ErrorMessage, src.CreatedAt, src.UpdatedAt)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to create source", err)
	}
	return nil
}

// GetSource fetches a source by primary key.
func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	query := s.rebind(`SELECT ` + sourceColumns + ` FROM sources WHERE id = ?`)
	return s.scanSource(s.db.QueryRowContext(ctx, query, id))
}

// GetSourceByName fetches a source by its unique name.
func (s *Store) GetSourceByName(ctx context.Context, name string) (*Source, error) {
	query := s.rebind(`SELECT ` + sourceColumns + ` FROM sources WHERE name = ?`)
	return s.scanSource(s.db.QueryRowContext(ctx, query, name))
}

// UpdateSource persists mutable fields.
func (s *Store) UpdateSource(ctx context.Context, src *Source) error {
	if err := src.Validate(); err != nil {
		return errdefs.Wrap(errdefs.CodeValidation, "invalid source", err)
	}
	src.UpdatedAt = time.Now().UTC()

	config, err := encodeJSON(src.Config)
	if err != nil {
		return err
	}

	query := s.rebind(`UPDATE sources
		SET name = ?, type = ?, library_id = ?, version = ?, config = ?, status = ?,
			sync_frequency = ?, last_synced_at = ?, error_message = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		src.Name, string(src.Type), nullString(src.LibraryID), src.Version, config,
		string(src.Status), src.SyncFrequency, nullTime(src.LastSyncedAt),
		src.ErrorMessage, src.UpdatedAt, src.ID)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to update source", err)
	}
	return requireRowsAffected(res, "source", src.ID)
}

// MarkSourceSynced records a successful sync.
func (s *Store) MarkSourceSynced(ctx context.Context, id string, at time.Time) error {
	query := s.rebind(`UPDATE sources
		SET last_synced_at = ?, status = ?, error_message = '', updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, at, string(SourceStatusActive), time.Now().UTC(), id)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to mark source synced", err)
	}
	return requireRowsAffected(res, "source", id)
}

// MarkSourceError latches the source into the error state.
func (s *Store) MarkSourceError(ctx context.Context, id, message string) error {
	query := s.rebind(`UPDATE sources
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, string(SourceStatusError), message, time.Now().UTC(), id)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to mark source errored", err)
	}
	return requireRowsAffected(res, "source", id)
}

// DeleteSource removes a source; its documents and chunks cascade.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM sources WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to delete source", err)
	}
	return requireRowsAffected(res, "source", id)
}

// ListSources returns all sources ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]*Source, error) {
	query := s.rebind(`SELECT ` + sourceColumns + ` FROM sources ORDER BY name`)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to list sources", err)
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		src, err := scanSourceRow(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *Store) scanSource(row *sql.Row) (*Source, error) {
	src, err := scanSourceRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.New(errdefs.CodeSourceNotFound, "source not found")
	}
	return src, err
}

func scanSourceRow(row rowScanner) (*Source, error) {
	var src Source
	var srcType, status, config string
	var libraryID sql.NullString
	var lastSyncedAt sql.NullTime
	err := row.Scan(&src.ID, &src.Name, &srcType, &libraryID, &src.Version,
		&config, &status, &src.SyncFrequency, &lastSyncedAt, &src.ErrorMessage,
		&src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to scan source", err)
	}
	src.Type = SourceType(srcType)
	src.Status = SourceStatus(status)
	src.Config = decodeMap(config)
	src.LibraryID = libraryID.String
	src.LastSyncedAt = scanNullTime(lastSyncedAt)
	return &src, nil
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
