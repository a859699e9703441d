package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/chunk"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/retrieval"
)

func toRetrievalRequest(req retrieveRequest) retrieval.Request {
	return retrieval.Request{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		DirectoryIDs:   req.DirectoryIDs,
		TopK:           req.TopK,
		MinScore:       req.MinScore,
	}
}

type createDirectoryRequest struct {
	Path                  string   `json:"path"`
	FilePatterns          []string `json:"file_patterns"`
	ExcludePatterns       []string `json:"exclude_patterns"`
	IndexFrequencyMinutes int      `json:"index_frequency_minutes"`
}

func (s *Server) createDirectory(c echo.Context) error {
	var req createDirectoryRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, qerrors.Wrap(qerrors.InputInvalid, "invalid request body", err))
	}
	if req.Path == "" {
		return errorJSON(c, qerrors.New(qerrors.InputInvalid, "path is required"))
	}

	cadence := req.IndexFrequencyMinutes
	if cadence <= 0 {
		cadence = 60
	}

	dir, err := s.Catalog.CreateDirectory(c.Request().Context(), catalog.Directory{
		Path:            req.Path,
		Active:          true,
		IncludePatterns: req.FilePatterns,
		ExcludePatterns: req.ExcludePatterns,
		CadenceMinutes:  cadence,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, dir)
}

type directoryWithStats struct {
	catalog.Directory
	Stats catalog.DirectoryStats `json:"stats"`
}

func (s *Server) listDirectories(c echo.Context) error {
	ctx := c.Request().Context()
	dirs, err := s.Catalog.ListDirectories(ctx)
	if err != nil {
		return errorJSON(c, err)
	}

	out := make([]directoryWithStats, len(dirs))
	for i, d := range dirs {
		stats, err := s.Catalog.DirectoryStatsFor(ctx, d.ID)
		if err != nil {
			return errorJSON(c, err)
		}
		out[i] = directoryWithStats{Directory: d, Stats: stats}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deactivateDirectory(c echo.Context) error {
	if err := s.Catalog.DeactivateDirectory(c.Request().Context(), c.Param("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) scanDirectory(c echo.Context) error {
	stats, err := s.Indexer.Scan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) indexDirectory(c echo.Context) error {
	cfg := s.Settings.Get()
	stats, err := s.Indexer.Index(c.Request().Context(), c.Param("id"), cfg.EmbeddingModel,
		chunk.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}, nil)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

type linkContextRequest struct {
	DirectoryID string `json:"directory_id"`
}

func (s *Server) linkContext(c echo.Context) error {
	var req linkContextRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, qerrors.Wrap(qerrors.InputInvalid, "invalid request body", err))
	}
	if req.DirectoryID == "" {
		return errorJSON(c, qerrors.New(qerrors.InputInvalid, "directory_id is required"))
	}
	if err := s.Conversations.LinkDirectory(c.Request().Context(), c.Param("cid"), req.DirectoryID); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "linked"})
}

func (s *Server) listContext(c echo.Context) error {
	ids, err := s.Conversations.ActiveDirectories(c.Request().Context(), c.Param("cid"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"directory_ids": ids})
}

func (s *Server) unlinkContext(c echo.Context) error {
	if err := s.Conversations.UnlinkDirectory(c.Request().Context(), c.Param("cid"), c.Param("did")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "unlinked"})
}

type retrieveRequest struct {
	Query          string   `json:"query"`
	ConversationID string   `json:"conversation_id"`
	DirectoryIDs   []string `json:"directory_ids"`
	TopK           *int     `json:"top_k"`
	MinScore       *float32 `json:"min_score"`
}

func (s *Server) retrieve(c echo.Context) error {
	var req retrieveRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, qerrors.Wrap(qerrors.InputInvalid, "invalid request body", err))
	}
	if req.Query == "" {
		return errorJSON(c, qerrors.New(qerrors.InputInvalid, "query is required"))
	}

	chunks, err := s.Retrieval.Retrieve(c.Request().Context(), toRetrievalRequest(req))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"chunks": chunks})
}

func (s *Server) clearIndex(c echo.Context) error {
	ctx := c.Request().Context()

	dirs, err := s.Catalog.ListDirectories(ctx)
	if err != nil {
		return errorJSON(c, err)
	}
	for _, d := range dirs {
		ids, err := s.Catalog.AllVectorStoreIDsForDirectory(ctx, d.ID)
		if err != nil {
			return errorJSON(c, err)
		}
		if len(ids) > 0 {
			if err := s.Vectors.Delete(ctx, ids); err != nil {
				return errorJSON(c, err)
			}
		}
	}

	if err := s.Catalog.ResetIndexedFlags(ctx); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) indexStats(c echo.Context) error {
	stats, err := s.Catalog.IndexStats(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
