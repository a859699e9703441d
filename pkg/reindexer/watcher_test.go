package reindexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinRootMatchesExactAndNestedPaths(t *testing.T) {
	root := "/data/project"
	assert.True(t, withinRoot(root, root))
	assert.True(t, withinRoot(root, filepath.Join(root, "a", "b.txt")))
	assert.False(t, withinRoot(root, "/data/other/b.txt"))
}

func TestHandleEventPicksLongestMatchingRoot(t *testing.T) {
	outer := "/data/project"
	inner := "/data/project/sub"
	pathToDirID := map[string]string{outer: "outer-id", inner: "inner-id"}

	w := &Watcher{Indexer: &fakeIndexer{}}
	event := fsnotify.Event{Name: filepath.Join(inner, "file.txt"), Op: fsnotify.Write}
	w.handleEvent(context.Background(), event, pathToDirID)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Contains(t, w.timers, "inner-id")
	assert.NotContains(t, w.timers, "outer-id")
	w.timers["inner-id"].Stop()
}

func TestHandleEventIgnoresPathOutsideAnyRoot(t *testing.T) {
	pathToDirID := map[string]string{"/data/project": "dir-id"}

	w := &Watcher{Indexer: &fakeIndexer{}}
	event := fsnotify.Event{Name: "/elsewhere/file.txt", Op: fsnotify.Write}
	w.handleEvent(context.Background(), event, pathToDirID)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.timers)
}
