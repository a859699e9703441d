package reindexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/chunk"
	"github.com/edombelayneh/Qlippy/pkg/indexer"
)

const debounceDuration = 2 * time.Second

// Watcher supplements the ticker-driven sweep with an immediate reindex
// trigger on filesystem change, grounded on the teacher's
// pkg/rag/strategy.VectorStore.StartFileWatcher/watchLoop
// (fsnotify.Watcher recursively added over every directory root, changes
// coalesced behind a debounce timer before triggering a reindex).
type Watcher struct {
	Catalog        *catalog.Catalog
	Indexer        Indexing
	EmbeddingModel func() string
	Chunking       func() chunk.Config
	Progress       chan<- indexer.ProgressEvent

	mu      sync.Mutex
	timers  map[string]*time.Timer
	watcher *fsnotify.Watcher
}

// Run starts watching every currently-active directory and blocks,
// triggering a reindex of whichever directory a change falls under once
// debounceDuration has elapsed with no further changes. Returns when ctx
// is cancelled or the underlying watcher fails to start.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw
	w.timers = make(map[string]*time.Timer)
	defer fw.Close()

	dirs, err := w.Catalog.ListActiveDirectories(ctx)
	if err != nil {
		return err
	}

	pathToDirID := make(map[string]string)
	for _, dir := range dirs {
		w.addTree(fw, dir.Path)
		pathToDirID[dir.Path] = dir.ID
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event, pathToDirID)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("reindexer: file watcher error", "error", err)
		}
	}
}

// addTree registers root and every subdirectory beneath it, matching the
// teacher's addPathToWatcher recursive-walk fallback.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) {
	if err := fw.Add(root); err != nil {
		slog.Warn("reindexer: failed to watch directory root", "path", root, "error", err)
	}
	_ = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info == nil || !info.IsDir() || p == root {
			return nil
		}
		if addErr := fw.Add(p); addErr != nil {
			slog.Debug("reindexer: failed to watch subdirectory", "path", p, "error", addErr)
		}
		return nil
	})
}

// handleEvent resolves the changed path to an owning directory by longest
// matching prefix, then (re)starts that directory's debounce timer.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, pathToDirID map[string]string) {
	var bestRoot, bestDirID string
	for root, dirID := range pathToDirID {
		if !withinRoot(root, event.Name) {
			continue
		}
		if len(root) > len(bestRoot) {
			bestRoot, bestDirID = root, dirID
		}
	}
	if bestDirID == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timers == nil {
		w.timers = make(map[string]*time.Timer)
	}
	if t, ok := w.timers[bestDirID]; ok {
		t.Stop()
	}
	dirID := bestDirID
	w.timers[dirID] = time.AfterFunc(debounceDuration, func() {
		w.triggerReindex(ctx, dirID)
	})
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.' && filepath.IsLocal(rel))
}

func (w *Watcher) triggerReindex(ctx context.Context, directoryID string) {
	model := ""
	if w.EmbeddingModel != nil {
		model = w.EmbeddingModel()
	}
	cfg := chunk.Config{}
	if w.Chunking != nil {
		cfg = w.Chunking()
	}

	if _, err := w.Indexer.Index(ctx, directoryID, model, cfg, w.Progress); err != nil {
		slog.Error("reindexer: watcher-triggered reindex failed", "directory_id", directoryID, "error", err)
	}
}
