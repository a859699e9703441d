package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/embed"
	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
	"github.com/edombelayneh/Qlippy/pkg/vectorstore"
)

func newTestService(t *testing.T) (*Service, *conversation.Store) {
	t.Helper()
	db, err := sqliteutil.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	vs, err := vectorstore.Open(context.Background(), db)
	require.NoError(t, err)

	convStore, err := conversation.Open(db)
	require.NoError(t, err)

	svc := &Service{
		Embed:           embed.New(embed.LocalLoader(16)),
		EmbedModelID:    "test-model",
		Vectors:         vs,
		Conversations:   convStore,
		DefaultTopK:     5,
		DefaultMinScore: 0,
	}
	return svc, convStore
}

func TestRetrieveReturnsEmptyWithNoDirectories(t *testing.T) {
	svc, _ := newTestService(t)
	chunks, err := svc.Retrieve(context.Background(), Request{Query: "hello", ConversationID: "none"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRetrieveUsesExplicitDirectoryIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	vec, err := svc.Embed.Embed(ctx, svc.EmbedModelID, "apples and oranges")
	require.NoError(t, err)

	require.NoError(t, svc.Vectors.Upsert(ctx, []vectorstore.Record{
		{ID: "v1", Vector: vec, Payload: map[string]any{
			"directory_id": "dir1", "file_path": "a.md", "chunk_index": 0, "content": "apples and oranges",
		}},
	}))

	chunks, err := svc.Retrieve(ctx, Request{Query: "apples and oranges", DirectoryIDs: []string{"dir1"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a.md", chunks[0].FilePath)
}

func TestRetrieveFallsBackToConversationDirectories(t *testing.T) {
	svc, convStore := newTestService(t)
	ctx := context.Background()

	c, err := convStore.CreateConversation(ctx, "chat")
	require.NoError(t, err)
	require.NoError(t, convStore.LinkDirectory(ctx, c.ID, "dir1"))

	vec, err := svc.Embed.Embed(ctx, svc.EmbedModelID, "text")
	require.NoError(t, err)
	require.NoError(t, svc.Vectors.Upsert(ctx, []vectorstore.Record{
		{ID: "v1", Vector: vec, Payload: map[string]any{"directory_id": "dir1", "file_path": "a.md", "chunk_index": 0, "content": "text"}},
	}))

	chunks, err := svc.Retrieve(ctx, Request{Query: "text", ConversationID: c.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestRetrieveDropsHitsBelowMinScore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	vec, err := svc.Embed.Embed(ctx, svc.EmbedModelID, "text")
	require.NoError(t, err)
	require.NoError(t, svc.Vectors.Upsert(ctx, []vectorstore.Record{
		{ID: "v1", Vector: vec, Payload: map[string]any{"directory_id": "dir1", "file_path": "a.md", "chunk_index": 0, "content": "text"}},
	}))

	impossible := float32(2.0)
	chunks, err := svc.Retrieve(ctx, Request{Query: "text", DirectoryIDs: []string{"dir1"}, MinScore: &impossible})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFormatContextEmptyWhenNoChunksFit(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil, 100))
}

func TestFormatContextStopsAtBudget(t *testing.T) {
	chunks := []Chunk{
		{FilePath: "a.md", ChunkIndex: 0, Content: "short", Score: 0.9},
		{FilePath: "b.md", ChunkIndex: 0, Content: "also short", Score: 0.8},
	}
	out := FormatContext(chunks, 120)
	assert.Contains(t, out, "Based on the following relevant information")
	assert.Contains(t, out, "a.md")
	assert.NotContains(t, out, "b.md")
}
