package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/chunk"
	"github.com/edombelayneh/Qlippy/pkg/embed"
	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
	"github.com/edombelayneh/Qlippy/pkg/vectorstore"
)

const testModel = "local/test"

func newTestIndexer(t *testing.T) (*Indexer, *catalog.Catalog) {
	t.Helper()
	db, err := sqliteutil.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.Open(db)
	require.NoError(t, err)
	store, err := vectorstore.Open(context.Background(), db)
	require.NoError(t, err)
	client := embed.New(embed.LocalLoader(16))

	return New(cat, store, client), cat
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIndexNewDirectoryEmbedsAllFiles(t *testing.T) {
	ix, cat := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello world, this is a file about cats and dogs")
	writeFile(t, root, "b.txt", "a second file entirely about boats and rivers")

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{
		Path:            root,
		IncludePatterns: []string{"**/*.txt"},
		CadenceMinutes:  60,
	})
	require.NoError(t, err)

	stats, err := ix.Index(ctx, dir.ID, testModel, chunk.Config{Size: 100, Overlap: 10}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 2, stats.Indexed)
	assert.Zero(t, stats.Failed)
	assert.Greater(t, stats.ChunkCount, 0)

	files, err := cat.ListFiles(ctx, dir.ID)
	require.NoError(t, err)
	for _, f := range files {
		assert.True(t, f.Indexed)
		assert.Greater(t, f.ChunkCount, 0)
	}

	root2, err := cat.MerkleRoot(ctx, dir.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, root2)
}

func TestIndexDetectsModifiedAndDeletedFiles(t *testing.T) {
	ix, cat := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "original content about cats")
	writeFile(t, root, "b.txt", "content that will be removed")

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{
		Path:            root,
		IncludePatterns: []string{"**/*.txt"},
		CadenceMinutes:  60,
	})
	require.NoError(t, err)

	_, err = ix.Index(ctx, dir.ID, testModel, chunk.Config{Size: 100, Overlap: 10}, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	writeFile(t, root, "a.txt", "modified content about dogs now")

	stats, err := ix.Index(ctx, dir.ID, testModel, chunk.Config{Size: 100, Overlap: 10}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Modified)
	assert.Equal(t, 1, stats.Deleted)

	files, err := cat.ListFiles(ctx, dir.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].RelativePath)
}

func TestIndexUnchangedFilesAreSkipped(t *testing.T) {
	ix, cat := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "stable content that never changes")

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{
		Path:            root,
		IncludePatterns: []string{"**/*.txt"},
		CadenceMinutes:  60,
	})
	require.NoError(t, err)

	_, err = ix.Index(ctx, dir.ID, testModel, chunk.Config{Size: 100, Overlap: 10}, nil)
	require.NoError(t, err)

	stats, err := ix.Index(ctx, dir.ID, testModel, chunk.Config{Size: 100, Overlap: 10}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Unchanged)
	assert.Zero(t, stats.Indexed)
}

func TestScanUpdatesCatalogWithoutEmbedding(t *testing.T) {
	ix, cat := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "first file about cats")
	writeFile(t, root, "b.txt", "second file about dogs")

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{
		Path:            root,
		IncludePatterns: []string{"**/*.txt"},
		CadenceMinutes:  60,
	})
	require.NoError(t, err)

	stats, err := ix.Scan(ctx, dir.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.New)

	files, err := cat.ListFiles(ctx, dir.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.False(t, f.Indexed)
		assert.Zero(t, f.ChunkCount)
	}

	root2, err := cat.MerkleRoot(ctx, dir.ID)
	require.NoError(t, err)
	assert.Empty(t, root2)
}

func TestIndexEmitsProgressEvents(t *testing.T) {
	ix, cat := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "some content for progress testing")

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{
		Path:            root,
		IncludePatterns: []string{"**/*.txt"},
		CadenceMinutes:  60,
	})
	require.NoError(t, err)

	events := make(chan ProgressEvent, 16)
	_, err = ix.Index(ctx, dir.ID, testModel, chunk.Config{Size: 100, Overlap: 10}, events)
	require.NoError(t, err)
	close(events)

	var statuses []Status
	for e := range events {
		statuses = append(statuses, e.Status)
	}
	assert.Contains(t, statuses, StatusScanning)
	assert.Contains(t, statuses, StatusFinalizing)
	assert.Contains(t, statuses, StatusComplete)
}
