package reindexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/chunk"
	"github.com/edombelayneh/Qlippy/pkg/indexer"
	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
)

type fakeIndexer struct {
	mu      sync.Mutex
	calls   []string
	failIDs map[string]bool
}

func (f *fakeIndexer) Index(_ context.Context, directoryID, _ string, _ chunk.Config, _ chan<- indexer.ProgressEvent) (indexer.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, directoryID)
	if f.failIDs[directoryID] {
		return indexer.Stats{}, errors.New("boom")
	}
	return indexer.Stats{}, nil
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	db, err := sqliteutil.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c, err := catalog.Open(db)
	require.NoError(t, err)
	return c
}

func TestSweepSkipsDirectoryNotYetDue(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	now := time.Now()
	dir, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/tmp/a", CadenceMinutes: 60})
	require.NoError(t, err)
	require.NoError(t, cat.TouchLastIndexedAt(ctx, dir.ID, now))

	fi := &fakeIndexer{}
	r := &Reindexer{Catalog: cat, Indexer: fi, Now: func() time.Time { return now.Add(5 * time.Minute) }}
	r.sweep(ctx)

	assert.Empty(t, fi.calls)
}

func TestSweepIndexesDirectoryPastCadence(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	now := time.Now()
	dir, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/tmp/a", CadenceMinutes: 60})
	require.NoError(t, err)
	require.NoError(t, cat.TouchLastIndexedAt(ctx, dir.ID, now))

	fi := &fakeIndexer{}
	r := &Reindexer{Catalog: cat, Indexer: fi, Now: func() time.Time { return now.Add(90 * time.Minute) }}
	r.sweep(ctx)

	assert.Equal(t, []string{dir.ID}, fi.calls)
}

func TestSweepIndexesDirectoryNeverIndexed(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/tmp/a", CadenceMinutes: 60})
	require.NoError(t, err)

	fi := &fakeIndexer{}
	r := &Reindexer{Catalog: cat, Indexer: fi}
	r.sweep(ctx)

	assert.Equal(t, []string{dir.ID}, fi.calls)
}

func TestSweepSkipsInactiveDirectories(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/tmp/a", CadenceMinutes: 60})
	require.NoError(t, err)
	require.NoError(t, cat.DeactivateDirectory(ctx, dir.ID))

	fi := &fakeIndexer{}
	r := &Reindexer{Catalog: cat, Indexer: fi}
	r.sweep(ctx)

	assert.Empty(t, fi.calls)
}

func TestSweepContinuesAfterOneDirectoryErrors(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	d1, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/tmp/a", CadenceMinutes: 60})
	require.NoError(t, err)
	d2, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/tmp/b", CadenceMinutes: 60})
	require.NoError(t, err)

	fi := &fakeIndexer{failIDs: map[string]bool{d1.ID: true}}
	r := &Reindexer{Catalog: cat, Indexer: fi, Now: time.Now}
	r.sweep(ctx)

	assert.ElementsMatch(t, []string{d1.ID, d2.ID}, fi.calls)
}

func TestSweepStopsBetweenDirectoriesOnCancellation(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	_, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/tmp/a", CadenceMinutes: 60})
	require.NoError(t, err)
	_, err = cat.CreateDirectory(ctx, catalog.Directory{Path: "/tmp/b", CadenceMinutes: 60})
	require.NoError(t, err)

	cancelled, stop := context.WithCancel(ctx)
	stop()

	fi := &fakeIndexer{}
	r := &Reindexer{Catalog: cat, Indexer: fi}
	r.sweep(cancelled)

	assert.Empty(t, fi.calls)
}
