package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// Embedding mirrors entity E from spec.md §3.
type Embedding struct {
	ID            string
	FileID        string
	ChunkIndex    int
	StartChar     int
	EndChar       int
	ChunkHash     string
	VectorStoreID string
}

// InsertEmbeddings writes one catalog row per chunk. Callers must have
// already deleted any previous embeddings for the same file (spec.md §4.5
// step 5), which DeleteEmbeddingsForFile does.
func (c *Catalog) InsertEmbeddings(ctx context.Context, embeddings []Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to begin embedding insert transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (id, file_id, chunk_index, start_char, end_char, chunk_hash, vector_store_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to prepare embedding insert", err)
	}
	defer stmt.Close()

	for _, e := range embeddings {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.FileID, e.ChunkIndex, e.StartChar, e.EndChar, e.ChunkHash, e.VectorStoreID); err != nil {
			return qerrors.Wrap(qerrors.IOFailure, "failed to insert embedding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to commit embedding insert", err)
	}
	return nil
}

// EmbeddingsForFile lists embedding rows for a file, ordered by chunk index.
func (c *Catalog) EmbeddingsForFile(ctx context.Context, fileID string) ([]Embedding, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, file_id, chunk_index, start_char, end_char, chunk_hash, vector_store_id
		FROM embeddings WHERE file_id = ? ORDER BY chunk_index ASC
	`, fileID)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list embeddings for file", err)
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		var e Embedding
		if err := rows.Scan(&e.ID, &e.FileID, &e.ChunkIndex, &e.StartChar, &e.EndChar, &e.ChunkHash, &e.VectorStoreID); err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, "failed to scan embedding row", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEmbeddingsForFile removes every embedding row for a file and
// returns their vector_store_ids, so the caller can also delete them from
// C6 in the same logical unit (spec.md §3 invariant on E, §4.5 step 5).
func (c *Catalog) DeleteEmbeddingsForFile(ctx context.Context, fileID string) ([]string, error) {
	existing, err := c.EmbeddingsForFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if _, err := c.db.ExecContext(ctx, `DELETE FROM embeddings WHERE file_id = ?`, fileID); err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to delete embeddings for file", err)
	}

	ids := make([]string, len(existing))
	for i, e := range existing {
		ids[i] = e.VectorStoreID
	}
	return ids, nil
}

// AllVectorStoreIDsForDirectory lists every vector_store_id belonging to
// files in a directory, used when the whole directory is removed.
func (c *Catalog) AllVectorStoreIDsForDirectory(ctx context.Context, directoryID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT e.vector_store_id FROM embeddings e
		JOIN files f ON f.id = e.file_id
		WHERE f.directory_id = ?
	`, directoryID)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list vector store ids for directory", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, "failed to scan vector store id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
