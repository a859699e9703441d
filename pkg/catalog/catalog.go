// Package catalog implements C7: the relational source of truth for what
// has been indexed — directories, files, Merkle nodes, embedding metadata,
// and index settings.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS directories (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	active INTEGER NOT NULL DEFAULT 1,
	include_patterns TEXT NOT NULL,
	exclude_patterns TEXT NOT NULL,
	cadence_minutes INTEGER NOT NULL DEFAULT 60,
	last_indexed_at TEXT
);

CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	directory_id TEXT NOT NULL REFERENCES directories(id) ON DELETE CASCADE,
	relative_path TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	merkle_hash TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	modified_at TEXT NOT NULL,
	indexed INTEGER NOT NULL DEFAULT 0,
	indexed_at TEXT,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(directory_id, relative_path)
);
CREATE INDEX IF NOT EXISTS idx_files_directory ON files(directory_id);

CREATE TABLE IF NOT EXISTS merkle_nodes (
	id TEXT PRIMARY KEY,
	directory_id TEXT NOT NULL REFERENCES directories(id) ON DELETE CASCADE,
	node_path TEXT NOT NULL,
	node_hash TEXT NOT NULL,
	is_leaf INTEGER NOT NULL,
	parent_path TEXT NOT NULL,
	depth INTEGER NOT NULL,
	UNIQUE(directory_id, node_path)
);
CREATE INDEX IF NOT EXISTS idx_merkle_nodes_directory ON merkle_nodes(directory_id);

CREATE TABLE IF NOT EXISTS embeddings (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	end_char INTEGER NOT NULL,
	chunk_hash TEXT NOT NULL,
	vector_store_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_file ON embeddings(file_id);
`

// Catalog wraps a *sql.DB configured per pkg/sqliteutil conventions with the
// entity operations C7–C9 and C10 need.
type Catalog struct {
	db *sql.DB
}

// Open creates the catalog schema (idempotently) on db and returns a
// Catalog bound to it.
func Open(db *sql.DB) (*Catalog, error) {
	if err := sqliteutil.RunMigrations(db, []string{schemaSQL}); err != nil {
		return nil, err
	}
	return &Catalog{db: db}, nil
}

// Directory mirrors entity D from spec.md §3.
type Directory struct {
	ID             string
	Path           string
	Active         bool
	IncludePatterns []string
	ExcludePatterns []string
	CadenceMinutes int
	LastIndexedAt  *time.Time
}

// CreateDirectory registers a new directory for indexing, generating its id.
func (c *Catalog) CreateDirectory(ctx context.Context, d Directory) (Directory, error) {
	d.ID = uuid.NewString()
	d.Active = true

	include, err := json.Marshal(d.IncludePatterns)
	if err != nil {
		return Directory{}, qerrors.Wrap(qerrors.IOFailure, "failed to marshal include patterns", err)
	}
	exclude, err := json.Marshal(d.ExcludePatterns)
	if err != nil {
		return Directory{}, qerrors.Wrap(qerrors.IOFailure, "failed to marshal exclude patterns", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO directories (id, path, active, include_patterns, exclude_patterns, cadence_minutes, last_indexed_at)
		VALUES (?, ?, 1, ?, ?, ?, NULL)
	`, d.ID, d.Path, string(include), string(exclude), d.CadenceMinutes)
	if err != nil {
		return Directory{}, qerrors.Wrap(qerrors.IOFailure, "failed to insert directory", err)
	}

	return d, nil
}

// GetDirectory fetches a directory by id.
func (c *Catalog) GetDirectory(ctx context.Context, id string) (Directory, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, path, active, include_patterns, exclude_patterns, cadence_minutes, last_indexed_at
		FROM directories WHERE id = ?
	`, id)
	return scanDirectory(row)
}

// ListDirectories returns every directory, active and inactive.
func (c *Catalog) ListDirectories(ctx context.Context) ([]Directory, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, path, active, include_patterns, exclude_patterns, cadence_minutes, last_indexed_at
		FROM directories ORDER BY path
	`)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list directories", err)
	}
	defer rows.Close()

	var out []Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListActiveDirectories returns only directories with active=true, the set
// the reindexer (C9) sweeps.
func (c *Catalog) ListActiveDirectories(ctx context.Context) ([]Directory, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, path, active, include_patterns, exclude_patterns, cadence_minutes, last_indexed_at
		FROM directories WHERE active = 1 ORDER BY path
	`)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list active directories", err)
	}
	defer rows.Close()

	var out []Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeactivateDirectory marks a directory inactive. Spec.md §3: "remove"
// operation sets inactive rather than deleting, to preserve history.
func (c *Catalog) DeactivateDirectory(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE directories SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to deactivate directory", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to deactivate directory", err)
	}
	if n == 0 {
		return qerrors.New(qerrors.NotFound, fmt.Sprintf("directory %q not found", id))
	}
	return nil
}

// TouchLastIndexedAt records the orchestrator's completion time for a
// directory (spec.md §4.5 step 7).
func (c *Catalog) TouchLastIndexedAt(ctx context.Context, id string, at time.Time) error {
	_, err := c.db.ExecContext(ctx, `UPDATE directories SET last_indexed_at = ? WHERE id = ?`, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to update last_indexed_at", err)
	}
	return nil
}

func scanDirectory(row rowScanner) (Directory, error) {
	var d Directory
	var active int
	var include, exclude string
	var lastIndexedAt sql.NullString

	if err := row.Scan(&d.ID, &d.Path, &active, &include, &exclude, &d.CadenceMinutes, &lastIndexedAt); err != nil {
		if err == sql.ErrNoRows {
			return Directory{}, qerrors.New(qerrors.NotFound, "directory not found")
		}
		return Directory{}, qerrors.Wrap(qerrors.IOFailure, "failed to scan directory row", err)
	}

	d.Active = active != 0
	if err := json.Unmarshal([]byte(include), &d.IncludePatterns); err != nil {
		return Directory{}, qerrors.Wrap(qerrors.IOFailure, "failed to unmarshal include patterns", err)
	}
	if err := json.Unmarshal([]byte(exclude), &d.ExcludePatterns); err != nil {
		return Directory{}, qerrors.Wrap(qerrors.IOFailure, "failed to unmarshal exclude patterns", err)
	}
	if lastIndexedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastIndexedAt.String)
		if err != nil {
			return Directory{}, qerrors.Wrap(qerrors.IOFailure, "failed to parse last_indexed_at", err)
		}
		d.LastIndexedAt = &t
	}
	return d, nil
}
