package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/embed"
	"github.com/edombelayneh/Qlippy/pkg/generation"
	"github.com/edombelayneh/Qlippy/pkg/indexer"
	"github.com/edombelayneh/Qlippy/pkg/metrics"
	"github.com/edombelayneh/Qlippy/pkg/retrieval"
	"github.com/edombelayneh/Qlippy/pkg/settings"
	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
	"github.com/edombelayneh/Qlippy/pkg/tools"
	"github.com/edombelayneh/Qlippy/pkg/toolloop"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := sqliteutil.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.Open(db)
	require.NoError(t, err)
	convos, err := conversation.Open(db)
	require.NoError(t, err)
	execs, err := toolloop.OpenExecutionLog(db)
	require.NoError(t, err)

	embedder := embed.New(embed.LocalLoader(16))
	handle := generation.NewHandle(generation.LocalLoader("local/test", 1024))
	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(registry, nil))

	mgr, err := settings.NewManager(settings.Testing, "")
	require.NoError(t, err)

	retrievalSvc := &retrieval.Service{
		Embed:           embedder,
		EmbedModelID:    "local/test",
		Conversations:   convos,
		DefaultTopK:     5,
		DefaultMinScore: 0,
	}
	generationSvc := &generation.Service{
		Handle:        handle,
		ModelID:       "local/test",
		Retrieval:     retrievalSvc,
		Conversations: convos,
		Settings:      mgr.Get,
	}

	return New(Deps{
		Catalog:       cat,
		Conversations: convos,
		Indexer:       indexer.New(cat, nil, embedder),
		Retrieval:     retrievalSvc,
		Generation:    generationSvc,
		Tools:         registry,
		ExecutionLog:  execs,
		Settings:      mgr,
		Metrics:       metrics.New(),
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndListDirectories(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/rag/directories", createDirectoryRequest{
		Path:                  t.TempDir(),
		FilePatterns:          []string{"**/*.txt"},
		IndexFrequencyMinutes: 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created catalog.Directory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 30, created.CadenceMinutes)

	rec = doJSON(t, s, http.MethodGet, "/rag/directories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []directoryWithStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestCreateDirectoryRejectsEmptyPath(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/rag/directories", createDirectoryRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestScanDirectoryReportsNewFiles(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeTestFile(t, root, "a.txt", "alpha content")

	dir, err := s.Catalog.CreateDirectory(ctx, catalog.Directory{
		Path:            root,
		IncludePatterns: []string{"**/*.txt"},
		CadenceMinutes:  60,
	})
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, "/rag/directories/"+dir.ID+"/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats indexer.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.New)
	assert.Zero(t, stats.ChunkCount)
}

func TestDeactivateUnknownDirectoryReturnsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodDelete, "/rag/directories/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveMessageRejectsBadRole(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	convo, err := s.Conversations.CreateConversation(ctx, "test")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, "/save-message", saveMessageRequest{
		ConversationID: convo.ID,
		Role:           "system",
		Content:        "hello",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/save-message", saveMessageRequest{
		ConversationID: convo.ID,
		Role:           "user",
		Content:        "hello",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestToolsExecuteReturnsMessagesAndSuccess(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	convo, err := s.Conversations.CreateConversation(ctx, "test")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, "/tools/execute", toolsExecuteRequest{
		ConversationID: convo.ID,
		Prompt:         "Human: say hi",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "response")
	assert.Contains(t, body, "tools_called")
	assert.Contains(t, body, "messages")
}

func TestListToolsReturnsBuiltins(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []tools.Tool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.NotEmpty(t, list)
}

func TestRetrieveWithNoLinkedDirectoriesReturnsEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/rag/retrieve", retrieveRequest{Query: "anything"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body["chunks"])
}

func TestIndexStatsOnEmptyCatalog(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/rag/index-stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats catalog.IndexStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalDirectories)
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
