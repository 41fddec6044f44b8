package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docvector/docvector/pkg/errdefs"
)

const libraryColumns = `id, library_id, name, aliases, homepage, repo_url, metadata, created_at, updated_at`

// CreateLibrary inserts a library, assigning id and timestamps.
func (s *Store) CreateLibrary(ctx context.Context, lib *Library) error {
	if err := lib.Validate(); err != nil {
		return errdefs.Wrap(errdefs.CodeValidation, "invalid library", err)
	}
	if lib.ID == "" {
		lib.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lib.CreatedAt = now
	lib.UpdatedAt = now

	if existing, err := s.GetLibraryByExternalID(ctx, lib.LibraryID); err == nil && existing != nil {
		return errdefs.Newf(errdefs.CodeValidation, "library %s already exists", lib.LibraryID)
	}

	aliases, err := encodeStrings(lib.Aliases)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(lib.Metadata)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO libraries (` + libraryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		lib.ID, lib.LibraryID, lib.Name, aliases, lib.Homepage, lib.RepoURL,
		metadata, lib.CreatedAt, lib.UpdatedAt)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to create library", err)
	}
	return nil
}

// GetLibrary fetches a library by primary key.
func (s *Store) GetLibrary(ctx context.Context, id string) (*Library, error) {
	query := s.rebind(`SELECT ` + libraryColumns + ` FROM libraries WHERE id = ?`)
	return s.scanLibrary(s.db.QueryRowContext(ctx, query, id))
}

// GetLibraryByExternalID fetches a library by its unique external id.
func (s *Store) GetLibraryByExternalID(ctx context.Context, libraryID string) (*Library, error) {
	query := s.rebind(`SELECT ` + libraryColumns + ` FROM libraries WHERE library_id = ?`)
	return s.scanLibrary(s.db.QueryRowContext(ctx, query, libraryID))
}

// ResolveLibrary finds a library by external id, name, or alias.
// Lookup is case-insensitive; aliases are matched after the cheaper
// keyed lookups miss.
func (s *Store) ResolveLibrary(ctx context.Context, nameOrAlias string) (*Library, error) {
	query := s.rebind(`SELECT ` + libraryColumns + ` FROM libraries
		WHERE LOWER(library_id) = LOWER(?) OR LOWER(name) = LOWER(?)`)
	lib, err := s.scanLibrary(s.db.QueryRowContext(ctx, query, nameOrAlias, nameOrAlias))
	if err == nil {
		return lib, nil
	}
	if !errdefs.Is(err, errdefs.CodeNotFound) {
		return nil, err
	}

	libs, err := s.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	for _, candidate := range libs {
		for _, alias := range candidate.Aliases {
			if strings.EqualFold(alias, nameOrAlias) {
				return candidate, nil
			}
		}
	}
	return nil, errdefs.Newf(errdefs.CodeNotFound, "library not found: %s", nameOrAlias)
}

// UpdateLibrary persists mutable fields.
func (s *Store) UpdateLibrary(ctx context.Context, lib *Library) error {
	if err := lib.Validate(); err != nil {
		return errdefs.Wrap(errdefs.CodeValidation, "invalid library", err)
	}
	lib.UpdatedAt = time.Now().UTC()

	aliases, err := encodeStrings(lib.Aliases)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(lib.Metadata)
	if err != nil {
		return err
	}

	query := s.rebind(`UPDATE libraries
		SET name = ?, aliases = ?, homepage = ?, repo_url = ?, metadata = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		lib.Name, aliases, lib.Homepage, lib.RepoURL, metadata, lib.UpdatedAt, lib.ID)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to update library", err)
	}
	return requireRowsAffected(res, "library", lib.ID)
}

// DeleteLibrary removes a library; sources referencing it keep running
// with a null library.
func (s *Store) DeleteLibrary(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM libraries WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to delete library", err)
	}
	return requireRowsAffected(res, "library", id)
}

// ListLibraries returns all libraries ordered by name.
func (s *Store) ListLibraries(ctx context.Context) ([]*Library, error) {
	query := s.rebind(`SELECT ` + libraryColumns + ` FROM libraries ORDER BY name`)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to list libraries", err)
	}
	defer rows.Close()

	var libs []*Library
	for rows.Next() {
		lib, err := scanLibraryRow(rows)
		if err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanLibrary(row *sql.Row) (*Library, error) {
	lib, err := scanLibraryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.New(errdefs.CodeNotFound, "library not found")
	}
	return lib, err
}

func scanLibraryRow(row rowScanner) (*Library, error) {
	var lib Library
	var aliases, metadata string
	err := row.Scan(&lib.ID, &lib.LibraryID, &lib.Name, &aliases, &lib.Homepage,
		&lib.RepoURL, &metadata, &lib.CreatedAt, &lib.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errdefs.Wrap(errdefs.CodeDatabase, "failed to scan library", err)
	}
	lib.Aliases = decodeStrings(aliases)
	lib.Metadata = decodeMap(metadata)
	return &lib, nil
}

func requireRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errdefs.Wrap(errdefs.CodeDatabase, "failed to read rows affected", err)
	}
	if n == 0 {
		return errdefs.Newf(errdefs.CodeNotFound, "%s not found: %s", entity, id)
	}
	return nil
}

