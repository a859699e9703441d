// Package indexer implements C8: the orchestrator that turns a Directory's
// current file set into catalog rows, chunk embeddings, and a rebuilt
// Merkle tree (spec.md §4.5), grounded on the teacher's
// pkg/rag/strategy.VectorStore.Initialize hash-compare/index/cleanup
// pipeline.
package indexer

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/chunk"
	"github.com/edombelayneh/Qlippy/pkg/embed"
	"github.com/edombelayneh/Qlippy/pkg/extract"
	"github.com/edombelayneh/Qlippy/pkg/hashtree"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/scanner"
	"github.com/edombelayneh/Qlippy/pkg/vectorstore"
)

// Stats summarizes one Index call and is returned to the caller; the
// `complete` progress event does not carry it.
type Stats struct {
	New        int
	Modified   int
	Deleted    int
	Unchanged  int
	Indexed    int
	Failed     int
	ChunkCount int
}

// Indexer wires the catalog (C7), vector store (C6), and embedding client
// (C5) together behind the single `index` operation spec.md §4.5 defines.
type Indexer struct {
	Catalog  *catalog.Catalog
	Vectors  *vectorstore.Store
	Embedder *embed.Client
}

// New constructs an Indexer over the given storage handles.
func New(cat *catalog.Catalog, vectors *vectorstore.Store, embedder *embed.Client) *Indexer {
	return &Indexer{Catalog: cat, Vectors: vectors, Embedder: embedder}
}

// Scan runs only the change-detection half of Index (spec.md §4.5 steps
// 1-2): it updates the catalog's file rows to match the directory's
// current state and returns the new/modified/deleted/unchanged counts,
// without touching embeddings or the Merkle tree. Backs
// `POST /rag/directories/{id}/scan`.
func (ix *Indexer) Scan(ctx context.Context, directoryID string) (Stats, error) {
	_, stats, err := ix.diffDirectory(ctx, directoryID)
	return stats, err
}

// Index runs the full change-detection -> catalog-update -> embed -> merkle
// rebuild pipeline for one directory (spec.md §4.5). progress may be nil;
// events are always emitted non-blockingly.
func (ix *Indexer) Index(ctx context.Context, directoryID, embeddingModel string, chunking chunk.Config, progress chan<- ProgressEvent) (Stats, error) {
	emitProgress(progress, ProgressEvent{DirectoryID: directoryID, Status: StatusScanning, Message: "scanning directory"})

	dir, stats, err := ix.diffDirectory(ctx, directoryID)
	if err != nil {
		emitProgress(progress, ProgressEvent{DirectoryID: directoryID, Status: StatusError, Message: err.Error()})
		return stats, err
	}

	now := time.Now()

	worklist, err := ix.Catalog.UnindexedFiles(ctx, directoryID)
	if err != nil {
		return stats, err
	}

	emitProgress(progress, ProgressEvent{DirectoryID: directoryID, Status: StatusIndexing, Message: "indexing", Progress: 0})

	for i, f := range worklist {
		select {
		case <-ctx.Done():
			return stats, qerrors.Wrap(qerrors.Cancelled, "indexing cancelled", ctx.Err())
		default:
		}

		emitProgress(progress, ProgressEvent{
			DirectoryID: directoryID,
			Status:      StatusIndexing,
			CurrentFile: f.RelativePath,
			Progress:    float64(i) / float64(len(worklist)),
		})

		if err := ix.indexFile(ctx, dir, f, embeddingModel, chunking, &stats); err != nil {
			stats.Failed++
			slog.Error("failed to index file", "path", f.RelativePath, "error", err)
			continue
		}
		stats.Indexed++
	}

	emitProgress(progress, ProgressEvent{DirectoryID: directoryID, Status: StatusFinalizing, Message: "rebuilding merkle tree"})

	if err := ix.rebuildMerkleTree(ctx, directoryID); err != nil {
		emitProgress(progress, ProgressEvent{DirectoryID: directoryID, Status: StatusError, Message: err.Error()})
		return stats, err
	}

	if err := ix.Catalog.TouchLastIndexedAt(ctx, directoryID, now); err != nil {
		return stats, err
	}

	emitProgress(progress, ProgressEvent{DirectoryID: directoryID, Status: StatusComplete, Message: "indexing complete"})

	return stats, nil
}

// diffDirectory scans dir's current file set, upserts new/modified rows
// and deletes vanished ones, and returns the resulting counts. Shared by
// Scan and Index so a plain `scan` request exercises the identical
// change-detection path a full `index` run does.
func (ix *Indexer) diffDirectory(ctx context.Context, directoryID string) (catalog.Directory, Stats, error) {
	var stats Stats

	dir, err := ix.Catalog.GetDirectory(ctx, directoryID)
	if err != nil {
		return dir, stats, err
	}

	found, err := scanner.Scan(dir.Path, scanner.Patterns{Include: dir.IncludePatterns, Exclude: dir.ExcludePatterns})
	if err != nil {
		return dir, stats, err
	}

	existing, err := ix.Catalog.ListFiles(ctx, directoryID)
	if err != nil {
		return dir, stats, err
	}
	existingByPath := make(map[string]catalog.File, len(existing))
	for _, f := range existing {
		existingByPath[f.RelativePath] = f
	}

	seen := make(map[string]bool, len(found))

	for _, f := range found {
		seen[f.RelativePath] = true
		prior, ok := existingByPath[f.RelativePath]

		switch {
		case !ok:
			stats.New++
			if _, err := ix.Catalog.UpsertFile(ctx, catalog.File{
				DirectoryID:  directoryID,
				RelativePath: f.RelativePath,
				ContentHash:  f.ContentHash,
				MerkleHash:   hashtree.MerkleLeaf(f.RelativePath, f.ContentHash),
				SizeBytes:    f.Size,
				ModifiedAt:   f.ModTime,
			}); err != nil {
				slog.Error("failed to register new file", "path", f.RelativePath, "error", err)
			}
		case prior.ContentHash != f.ContentHash:
			stats.Modified++
			if _, err := ix.Catalog.UpsertFile(ctx, catalog.File{
				DirectoryID:  directoryID,
				RelativePath: f.RelativePath,
				ContentHash:  f.ContentHash,
				MerkleHash:   hashtree.MerkleLeaf(f.RelativePath, f.ContentHash),
				SizeBytes:    f.Size,
				ModifiedAt:   f.ModTime,
			}); err != nil {
				slog.Error("failed to register modified file", "path", f.RelativePath, "error", err)
			}
		default:
			stats.Unchanged++
		}
	}

	for path, prior := range existingByPath {
		if seen[path] {
			continue
		}
		stats.Deleted++
		if err := ix.Catalog.DeleteFile(ctx, prior.ID); err != nil {
			slog.Error("failed to delete catalog row", "path", path, "error", err)
		}
	}

	return dir, stats, nil
}

// indexFile runs extract -> chunk -> embed -> upsert for one file,
// deleting any previous embeddings first so re-indexing a modified file is
// idempotent (spec.md §4.5 step 5).
func (ix *Indexer) indexFile(ctx context.Context, dir catalog.Directory, f catalog.File, embeddingModel string, chunking chunk.Config, stats *Stats) error {
	absPath := filepath.Join(dir.Path, f.RelativePath)

	result := extract.Extract(absPath)
	splitter := chunk.ForPath(absPath)
	chunks := splitter.Split(result.Text, chunking)

	oldVectorIDs, err := ix.Catalog.DeleteEmbeddingsForFile(ctx, f.ID)
	if err != nil {
		return err
	}
	if len(oldVectorIDs) > 0 {
		if err := ix.Vectors.Delete(ctx, oldVectorIDs); err != nil {
			return err
		}
	}

	if len(chunks) == 0 {
		return ix.Catalog.MarkFileIndexed(ctx, f.ID, time.Now(), 0)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.Embedder.EmbedBatch(ctx, embeddingModel, texts)
	if err != nil {
		return err
	}

	records := make([]vectorstore.Record, len(chunks))
	rows := make([]catalog.Embedding, len(chunks))
	for i, c := range chunks {
		vectorID := uuid.NewString()
		records[i] = vectorstore.Record{
			ID:     vectorID,
			Vector: vectors[i],
			Payload: map[string]any{
				"file_id":           f.ID,
				"directory_id":      dir.ID,
				"file_path":         f.RelativePath,
				"chunk_index":       c.Index,
				"content":           c.Content,
				"extraction_method": result.ExtractionMethod,
			},
		}
		rows[i] = catalog.Embedding{
			FileID:        f.ID,
			ChunkIndex:    c.Index,
			StartChar:     c.StartChar,
			EndChar:       c.EndChar,
			ChunkHash:     c.Hash,
			VectorStoreID: vectorID,
		}
	}

	if err := ix.Vectors.Upsert(ctx, records); err != nil {
		return err
	}
	if err := ix.Catalog.InsertEmbeddings(ctx, rows); err != nil {
		return err
	}
	stats.ChunkCount += len(chunks)

	return ix.Catalog.MarkFileIndexed(ctx, f.ID, time.Now(), len(chunks))
}

// rebuildMerkleTree rescans the directory's current catalog rows and
// stores a freshly built tree (spec.md §4.5 step 6, §4.1).
func (ix *Indexer) rebuildMerkleTree(ctx context.Context, directoryID string) error {
	files, err := ix.Catalog.ListFiles(ctx, directoryID)
	if err != nil {
		return err
	}

	leaves := make([]hashtree.Leaf, len(files))
	for i, f := range files {
		leaves[i] = hashtree.Leaf{Path: f.RelativePath, ContentHash: f.ContentHash}
	}

	nodes := hashtree.Build(leaves)
	return ix.Catalog.ReplaceMerkleTree(ctx, directoryID, nodes)
}
