// Package retrieval implements C10: directory resolution, embedding the
// query, querying the vector store, and formatting a bounded context
// block, grounded on the teacher's `pkg/rag/strategy.VectorStore.Query`
// embed-then-search-then-threshold-filter pipeline.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/embed"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/vectorstore"
)

// Chunk is one retrieved, scored piece of context.
type Chunk struct {
	FilePath   string
	ChunkIndex int
	Content    string
	Score      float32
}

// Request is the input to Retrieve (spec.md §4.7). TopK and MinScore are
// pointers so "not provided" (fall back to the service default) is
// distinguishable from an explicit zero.
type Request struct {
	Query          string
	ConversationID string
	DirectoryIDs   []string // explicit override; takes precedence
	TopK           *int
	MinScore       *float32
}

// Service ties the embedding client and vector store together behind the
// directory-resolution and score-filtering rules of spec.md §4.7.
type Service struct {
	Embed        *embed.Client
	EmbedModelID string
	Vectors      *vectorstore.Store
	Conversations *conversation.Store

	DefaultTopK     int
	DefaultMinScore float32
}

// Retrieve resolves directory_ids (explicit -> conversation-linked ->
// empty), and if the resolved set is empty returns an empty result, not an
// error (spec.md §4.7). Otherwise it embeds the query, queries the vector
// store, drops hits below min_score, and returns the remainder sorted by
// score descending.
func (s *Service) Retrieve(ctx context.Context, req Request) ([]Chunk, error) {
	dirIDs, err := s.resolveDirectoryIDs(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(dirIDs) == 0 {
		return nil, nil
	}

	topK := s.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	minScore := s.DefaultMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	queryVec, err := s.Embed.Embed(ctx, s.EmbedModelID, req.Query)
	if err != nil {
		return nil, err
	}

	hits, err := s.Vectors.Query(ctx, queryVec, topK, vectorstore.Filter{DirectoryIDs: dirIDs})
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		chunks = append(chunks, hitToChunk(h))
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	return chunks, nil
}

func (s *Service) resolveDirectoryIDs(ctx context.Context, req Request) ([]string, error) {
	if len(req.DirectoryIDs) > 0 {
		return req.DirectoryIDs, nil
	}
	if req.ConversationID == "" || s.Conversations == nil {
		return nil, nil
	}
	ids, err := s.Conversations.ActiveDirectories(ctx, req.ConversationID)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to resolve conversation directories", err)
	}
	return ids, nil
}

func hitToChunk(h vectorstore.Hit) Chunk {
	path, _ := h.Payload["file_path"].(string)
	content, _ := h.Payload["content"].(string)

	chunkIndex := 0
	switch v := h.Payload["chunk_index"].(type) {
	case float64:
		chunkIndex = int(v)
	case int:
		chunkIndex = v
	}

	return Chunk{FilePath: path, ChunkIndex: chunkIndex, Content: content, Score: h.Score}
}

const contextHeader = "Based on the following relevant information from your indexed files:"

// FormatContext greedily appends chunks (already in score order) into a
// context block bounded by budget characters, wrapping each per spec.md
// §4.7. If zero chunks survive the budget, returns the empty string.
func FormatContext(chunks []Chunk, budget int) string {
	var b strings.Builder
	b.WriteString(contextHeader)
	wrote := false

	for _, c := range chunks {
		block := fmt.Sprintf("\n---\nSource: %s (chunk %d)\n%s\n---", c.FilePath, c.ChunkIndex+1, c.Content)
		if b.Len()+len(block) > budget {
			break
		}
		b.WriteString(block)
		wrote = true
	}

	if !wrote {
		return ""
	}
	return b.String()
}
