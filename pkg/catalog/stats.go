package catalog

import (
	"context"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// IndexStats is the aggregate summary returned by the `index_stats`
// operation referenced in spec.md's S1 scenario.
type IndexStats struct {
	TotalDirectories int
	TotalFiles       int
	IndexedFiles     int
	TotalChunks      int
}

// IndexStats computes the aggregate totals across every directory.
func (c *Catalog) IndexStats(ctx context.Context) (IndexStats, error) {
	var stats IndexStats

	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM directories`).Scan(&stats.TotalDirectories)
	if err != nil {
		return IndexStats{}, qerrors.Wrap(qerrors.IOFailure, "failed to count directories", err)
	}

	err = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&stats.TotalFiles)
	if err != nil {
		return IndexStats{}, qerrors.Wrap(qerrors.IOFailure, "failed to count files", err)
	}

	err = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE indexed = 1`).Scan(&stats.IndexedFiles)
	if err != nil {
		return IndexStats{}, qerrors.Wrap(qerrors.IOFailure, "failed to count indexed files", err)
	}

	err = c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunk_count), 0) FROM files`).Scan(&stats.TotalChunks)
	if err != nil {
		return IndexStats{}, qerrors.Wrap(qerrors.IOFailure, "failed to sum chunk counts", err)
	}

	return stats, nil
}

// DirectoryStats summarizes one directory's file/chunk counts, used by the
// `GET /rag/directories` listing (spec.md §6).
type DirectoryStats struct {
	TotalFiles   int
	IndexedFiles int
	TotalChunks  int
}

func (c *Catalog) DirectoryStatsFor(ctx context.Context, directoryID string) (DirectoryStats, error) {
	var stats DirectoryStats

	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE directory_id = ?`, directoryID).Scan(&stats.TotalFiles)
	if err != nil {
		return DirectoryStats{}, qerrors.Wrap(qerrors.IOFailure, "failed to count directory files", err)
	}

	err = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE directory_id = ? AND indexed = 1`, directoryID).Scan(&stats.IndexedFiles)
	if err != nil {
		return DirectoryStats{}, qerrors.Wrap(qerrors.IOFailure, "failed to count directory indexed files", err)
	}

	err = c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunk_count), 0) FROM files WHERE directory_id = ?`, directoryID).Scan(&stats.TotalChunks)
	if err != nil {
		return DirectoryStats{}, qerrors.Wrap(qerrors.IOFailure, "failed to sum directory chunk counts", err)
	}

	return stats, nil
}
