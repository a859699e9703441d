// Package vectorstore implements C6: a persistent nearest-neighbor index
// over chunk embeddings, filterable by directory.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// Record is a single upserted vector: an id, its embedding, and an opaque
// payload (file_id, directory_id, file_path, chunk_index, extraction
// metadata — spec.md §4.4).
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is a query result: the matched id, its similarity score in (0,1], and
// its stored payload.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Filter restricts a query to records whose directory_id is in DirectoryIDs.
// An empty/nil Filter matches every record.
type Filter struct {
	DirectoryIDs []string
}

func (f Filter) matches(payload map[string]any) bool {
	if len(f.DirectoryIDs) == 0 {
		return true
	}
	dirID, _ := payload["directory_id"].(string)
	for _, id := range f.DirectoryIDs {
		if id == dirID {
			return true
		}
	}
	return false
}

// Stats summarizes store occupancy, overall and per directory.
type Stats struct {
	Total        int
	PerDirectory map[string]int
}

// Store is a sqlite-persisted, HNSW-backed (`github.com/coder/hnsw`)
// nearest-neighbor index (spec.md §4.4). Reads are safe for concurrent use;
// writes are serialized internally, matching the teacher's
// single-writer-connection convention for the shared sqlite handle.
type Store struct {
	mu    sync.RWMutex
	db    *sql.DB
	dim   int
	graph *hnsw.Graph[uint64]

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64
}

// Open loads (or, on first run, creates) the vector store table in db and
// rebuilds the in-memory HNSW graph from persisted rows, matching spec.md
// §4.4's "store persists across process restarts" requirement.
func Open(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to create vector store schema", err)
	}

	s := &Store{
		db:      db,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
	}

	if err := s.rebuildGraph(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS vector_records (
	id TEXT PRIMARY KEY,
	directory_id TEXT NOT NULL,
	dim INTEGER NOT NULL,
	vector BLOB NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vector_records_directory ON vector_records(directory_id);
`

func (s *Store) rebuildGraph(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, dim, vector FROM vector_records ORDER BY rowid`)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to read vector records", err)
	}
	defer rows.Close()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20

	var dim int
	var nextKey uint64
	idToKey := make(map[string]uint64)
	keyToID := make(map[uint64]string)

	for rows.Next() {
		var id string
		var rowDim int
		var blob []byte
		if err := rows.Scan(&id, &rowDim, &blob); err != nil {
			return qerrors.Wrap(qerrors.IOFailure, "failed to scan vector record", err)
		}
		dim = rowDim
		vec := decodeVector(blob)

		key := nextKey
		nextKey++
		graph.Add(hnsw.MakeNode(key, vec))
		idToKey[id] = key
		keyToID[key] = id
	}
	if err := rows.Err(); err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to iterate vector records", err)
	}

	s.graph = graph
	s.dim = dim
	s.idToKey = idToKey
	s.keyToID = keyToID
	s.nextKey = nextKey
	return nil
}

// Dim returns the dimensionality of vectors currently stored, or 0 if empty.
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Upsert inserts or replaces records. If records carry a dimensionality
// different from the store's current one, callers MUST call Clear first
// (spec.md §4.4); Upsert rejects a mismatched dimension instead of silently
// corrupting the graph.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(records[0].Vector)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to begin vector upsert transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_records (id, directory_id, dim, vector, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET directory_id=excluded.directory_id, dim=excluded.dim, vector=excluded.vector, payload=excluded.payload
	`)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to prepare vector upsert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) != s.dim {
			return qerrors.New(qerrors.PreconditionFailed,
				fmt.Sprintf("vector dimension %d does not match store dimension %d; clear() required", len(r.Vector), s.dim))
		}

		dirID, _ := r.Payload["directory_id"].(string)
		payloadJSON, err := json.Marshal(r.Payload)
		if err != nil {
			return qerrors.Wrap(qerrors.IOFailure, "failed to marshal vector payload", err)
		}

		if _, err := stmt.ExecContext(ctx, r.ID, dirID, s.dim, encodeVector(r.Vector), string(payloadJSON)); err != nil {
			return qerrors.Wrap(qerrors.IOFailure, "failed to upsert vector record", err)
		}

		key, exists := s.idToKey[r.ID]
		if !exists {
			key = s.nextKey
			s.nextKey++
			s.idToKey[r.ID] = key
		} else {
			delete(s.keyToID, key)
		}
		s.keyToID[key] = r.ID
		s.graph.Add(hnsw.MakeNode(key, r.Vector))
	}

	if err := tx.Commit(); err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to commit vector upsert", err)
	}
	return nil
}

// Delete removes records by id. Deletion is lazy in the in-memory graph (the
// teacher's `Aman-CERP-amanmcp` HNSW store avoids deleting the last node
// directly for the same reason): the mapping is dropped so the id never
// surfaces in Query results, and the sqlite row is removed so a restart
// rebuilds a graph without it.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to begin vector delete transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM vector_records WHERE id = ?`)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to prepare vector delete", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return qerrors.Wrap(qerrors.IOFailure, "failed to delete vector record", err)
		}
		if key, exists := s.idToKey[id]; exists {
			delete(s.idToKey, id)
			delete(s.keyToID, key)
		}
	}

	if err := tx.Commit(); err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to commit vector delete", err)
	}
	return nil
}

// Query returns the top k records nearest to vector, restricted by filter,
// sorted by score descending. Score is `1 / (1 + distance)` per spec.md
// §4.4.
func (s *Store) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(vector) != s.dim {
		return nil, qerrors.New(qerrors.PreconditionFailed,
			fmt.Sprintf("query vector dimension %d does not match store dimension %d", len(vector), s.dim))
	}
	if s.graph == nil || s.graph.Len() == 0 {
		return nil, nil
	}

	// Over-fetch to absorb filter exclusions and lazily-deleted orphans,
	// since the HNSW graph has no native filter predicate.
	fetch := k * 4
	if fetch < k+16 {
		fetch = k + 16
	}
	if fetch > s.graph.Len() {
		fetch = s.graph.Len()
	}

	nodes := s.graph.Search(vector, fetch)

	hits := make([]Hit, 0, k)
	for _, node := range nodes {
		id, ok := s.keyToID[node.Key]
		if !ok {
			continue // lazily-deleted orphan
		}

		payload, err := s.loadPayload(ctx, id)
		if err != nil {
			return nil, err
		}
		if !filter.matches(payload) {
			continue
		}

		distance := s.graph.Distance(vector, node.Value)
		hits = append(hits, Hit{ID: id, Score: 1 / (1 + distance), Payload: payload})

		if len(hits) >= k {
			break
		}
	}

	return hits, nil
}

func (s *Store) loadPayload(ctx context.Context, id string) (map[string]any, error) {
	var payloadJSON string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM vector_records WHERE id = ?`, id).Scan(&payloadJSON)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to load vector payload", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to unmarshal vector payload", err)
	}
	return payload, nil
}

// Clear drops and recreates the collection, per spec.md §4.4's dimension
// change handling. Callers are responsible for resetting the catalog's
// indexed flags in the same logical operation.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM vector_records`); err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to clear vector store", err)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20

	s.graph = graph
	s.dim = 0
	s.idToKey = make(map[string]uint64)
	s.keyToID = make(map[uint64]string)
	s.nextKey = 0
	return nil
}

// Count returns the number of records, and DirectoryStats breaks that down per
// directory_id (spec.md §4.4 "count() and per-directory statistics").
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_records`).Scan(&count); err != nil {
		return 0, qerrors.Wrap(qerrors.IOFailure, "failed to count vector records", err)
	}
	return count, nil
}

func (s *Store) DirectoryStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT directory_id, COUNT(*) FROM vector_records GROUP BY directory_id`)
	if err != nil {
		return Stats{}, qerrors.Wrap(qerrors.IOFailure, "failed to compute directory stats", err)
	}
	defer rows.Close()

	stats := Stats{PerDirectory: make(map[string]int)}
	for rows.Next() {
		var dirID string
		var count int
		if err := rows.Scan(&dirID, &count); err != nil {
			return Stats{}, qerrors.Wrap(qerrors.IOFailure, "failed to scan directory stats", err)
		}
		stats.PerDirectory[dirID] = count
		stats.Total += count
	}
	return stats, rows.Err()
}
