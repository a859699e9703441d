package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/edombelayneh/Qlippy/pkg/hashtree"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// ReplaceMerkleTree deletes every stored node for directoryID and inserts
// nodes in their place, matching spec.md §4.5 step 6 ("rescan and build a
// new Merkle tree... storing every internal and leaf node").
func (c *Catalog) ReplaceMerkleTree(ctx context.Context, directoryID string, nodes []hashtree.Node) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to begin merkle replace transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM merkle_nodes WHERE directory_id = ?`, directoryID); err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to clear merkle nodes", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO merkle_nodes (id, directory_id, node_path, node_hash, is_leaf, parent_path, depth)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to prepare merkle insert", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		isLeaf := 0
		if n.Leaf {
			isLeaf = 1
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), directoryID, n.Path, n.Hash, isLeaf, n.ParentPath, n.Depth); err != nil {
			return qerrors.Wrap(qerrors.IOFailure, "failed to insert merkle node", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to commit merkle replace", err)
	}
	return nil
}

// MerkleRoot returns the node hash stored at path "" for directoryID, or
// empty string if the directory has no tree yet.
func (c *Catalog) MerkleRoot(ctx context.Context, directoryID string) (string, error) {
	var hash string
	err := c.db.QueryRowContext(ctx, `
		SELECT node_hash FROM merkle_nodes WHERE directory_id = ? AND node_path = ''
	`, directoryID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", qerrors.Wrap(qerrors.IOFailure, "failed to load merkle root", err)
	}
	return hash, nil
}
