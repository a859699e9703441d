package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// File mirrors entity F from spec.md §3.
type File struct {
	ID           string
	DirectoryID  string
	RelativePath string
	ContentHash  string
	MerkleHash   string
	SizeBytes    int64
	ModifiedAt   time.Time
	Indexed      bool
	IndexedAt    *time.Time
	ChunkCount   int
}

// UpsertFile inserts a new file row, or updates an existing
// (directory_id, relative_path) row's hashes/size/mtime and resets
// indexed=false (spec.md §4.5 step 2: "modified... set indexed=false").
// The returned File carries its id either way.
func (c *Catalog) UpsertFile(ctx context.Context, f File) (File, error) {
	existing, err := c.findFileByPath(ctx, f.DirectoryID, f.RelativePath)
	if err != nil && qerrors.KindOf(err) != qerrors.NotFound {
		return File{}, err
	}

	if existing.ID != "" {
		f.ID = existing.ID
		_, err := c.db.ExecContext(ctx, `
			UPDATE files SET content_hash=?, merkle_hash=?, size_bytes=?, modified_at=?, indexed=0
			WHERE id=?
		`, f.ContentHash, f.MerkleHash, f.SizeBytes, f.ModifiedAt.UTC().Format(time.RFC3339), f.ID)
		if err != nil {
			return File{}, qerrors.Wrap(qerrors.IOFailure, "failed to update file", err)
		}
		f.Indexed = false
		return f, nil
	}

	f.ID = uuid.NewString()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO files (id, directory_id, relative_path, content_hash, merkle_hash, size_bytes, modified_at, indexed, indexed_at, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, 0)
	`, f.ID, f.DirectoryID, f.RelativePath, f.ContentHash, f.MerkleHash, f.SizeBytes, f.ModifiedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return File{}, qerrors.Wrap(qerrors.IOFailure, "failed to insert file", err)
	}
	return f, nil
}

func (c *Catalog) findFileByPath(ctx context.Context, directoryID, relativePath string) (File, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, directory_id, relative_path, content_hash, merkle_hash, size_bytes, modified_at, indexed, indexed_at, chunk_count
		FROM files WHERE directory_id = ? AND relative_path = ?
	`, directoryID, relativePath)
	return scanFile(row)
}

// ListFiles returns every file row for a directory.
func (c *Catalog) ListFiles(ctx context.Context, directoryID string) ([]File, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, directory_id, relative_path, content_hash, merkle_hash, size_bytes, modified_at, indexed, indexed_at, chunk_count
		FROM files WHERE directory_id = ?
	`, directoryID)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list files", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UnindexedFiles returns rows with indexed=false ordered by ascending size,
// the work list order from spec.md §4.5 step 3.
func (c *Catalog) UnindexedFiles(ctx context.Context, directoryID string) ([]File, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, directory_id, relative_path, content_hash, merkle_hash, size_bytes, modified_at, indexed, indexed_at, chunk_count
		FROM files WHERE directory_id = ? AND indexed = 0 ORDER BY size_bytes ASC
	`, directoryID)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list unindexed files", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFile removes a file row (cascading to its embeddings via the
// foreign-key ON DELETE CASCADE).
func (c *Catalog) DeleteFile(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to delete file", err)
	}
	return nil
}

// MarkFileIndexed sets indexed=true, indexed_at=now, chunk_count, per
// spec.md §4.5 step 4.
func (c *Catalog) MarkFileIndexed(ctx context.Context, id string, at time.Time, chunkCount int) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE files SET indexed=1, indexed_at=?, chunk_count=? WHERE id=?
	`, at.UTC().Format(time.RFC3339), chunkCount, id)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to mark file indexed", err)
	}
	return nil
}

// ResetIndexedFlags sets indexed=false for every file, used when the
// embedding model changes and the vector collection is invalidated
// (spec.md §4.4).
func (c *Catalog) ResetIndexedFlags(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `UPDATE files SET indexed = 0, chunk_count = 0`)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to reset indexed flags", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (File, error) {
	var f File
	var indexed int
	var modifiedAt string
	var indexedAt sql.NullString

	if err := row.Scan(&f.ID, &f.DirectoryID, &f.RelativePath, &f.ContentHash, &f.MerkleHash, &f.SizeBytes, &modifiedAt, &indexed, &indexedAt, &f.ChunkCount); err != nil {
		if err == sql.ErrNoRows {
			return File{}, qerrors.New(qerrors.NotFound, "file not found")
		}
		return File{}, qerrors.Wrap(qerrors.IOFailure, "failed to scan file row", err)
	}

	f.Indexed = indexed != 0
	t, err := time.Parse(time.RFC3339, modifiedAt)
	if err != nil {
		return File{}, qerrors.Wrap(qerrors.IOFailure, "failed to parse modified_at", err)
	}
	f.ModifiedAt = t

	if indexedAt.Valid {
		t, err := time.Parse(time.RFC3339, indexedAt.String)
		if err != nil {
			return File{}, qerrors.Wrap(qerrors.IOFailure, "failed to parse indexed_at", err)
		}
		f.IndexedAt = &t
	}
	return f, nil
}
