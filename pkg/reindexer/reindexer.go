// Package reindexer implements C9: a single long-running background task
// that sweeps active directories on a fixed interval and re-runs C8 for
// any directory whose cadence has elapsed (spec.md §4.6), grounded on the
// teacher's pkg/server.sourceLoader ticker-driven refresh loop.
package reindexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/chunk"
	"github.com/edombelayneh/Qlippy/pkg/indexer"
)

const (
	sweepInterval = 5 * time.Minute
	retryDelay    = 60 * time.Second
)

// Indexing is the subset of *indexer.Indexer the reindexer depends on,
// narrowed to an interface so a sweep can be exercised without a real
// catalog/vectorstore/embedder chain behind it.
type Indexing interface {
	Index(ctx context.Context, directoryID, embeddingModel string, chunking chunk.Config, progress chan<- indexer.ProgressEvent) (indexer.Stats, error)
}

// Reindexer periodically re-indexes every active directory whose cadence
// has elapsed since its last_indexed_at.
type Reindexer struct {
	Catalog        *catalog.Catalog
	Indexer        Indexing
	EmbeddingModel func() string
	Chunking       func() chunk.Config
	Progress       chan<- indexer.ProgressEvent

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// Run blocks, sweeping every sweepInterval until ctx is cancelled.
// Cancellation is only checked between directories, never mid-file,
// because C8's own Index loop is what checks ctx mid-batch.
func (r *Reindexer) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reindexer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// sweep runs one pass over every active directory, logging and moving on
// to the next directory if one fails, and bailing out early if ctx is
// cancelled between directories. A failure to even list directories waits
// retryDelay before returning, so Run's next tick isn't an immediate
// repeat of the same failure.
func (r *Reindexer) sweep(ctx context.Context) {
	dirs, err := r.Catalog.ListActiveDirectories(ctx)
	if err != nil {
		slog.Error("reindexer: failed to list active directories", "error", err)
		r.sleepOrDone(ctx, retryDelay)
		return
	}

	for _, dir := range dirs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !r.due(dir) {
			continue
		}

		model := ""
		if r.EmbeddingModel != nil {
			model = r.EmbeddingModel()
		}
		cfg := chunk.Config{}
		if r.Chunking != nil {
			cfg = r.Chunking()
		}

		if _, err := r.Indexer.Index(ctx, dir.ID, model, cfg, r.Progress); err != nil {
			slog.Error("reindexer: failed to index directory", "directory_id", dir.ID, "path", dir.Path, "error", err)
		}
	}
}

// due reports whether dir's cadence has elapsed since last_indexed_at. A
// directory never indexed before is always due.
func (r *Reindexer) due(dir catalog.Directory) bool {
	if dir.LastIndexedAt == nil {
		return true
	}
	cadence := time.Duration(dir.CadenceMinutes) * time.Minute
	return r.now().Sub(*dir.LastIndexedAt) >= cadence
}

func (r *Reindexer) sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
