// Package server implements C14: the HTTP/WS surface spec.md §4.9/§6
// define, grounded on the teacher's pkg/server.Server (echo.New with CORS
// and Logger middleware, /api route group, JSON error bodies, and the
// text/event-stream runAgent handler).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/generation"
	"github.com/edombelayneh/Qlippy/pkg/indexer"
	"github.com/edombelayneh/Qlippy/pkg/metrics"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/retrieval"
	"github.com/edombelayneh/Qlippy/pkg/settings"
	"github.com/edombelayneh/Qlippy/pkg/tools"
	"github.com/edombelayneh/Qlippy/pkg/toolloop"
	"github.com/edombelayneh/Qlippy/pkg/vectorstore"
)

// Deps bundles every singleton the HTTP surface dispatches into, mirroring
// the teacher's runtimes/sessionStore/teams fields on Server but widened to
// this runtime's indexing/RAG/generation subsystems.
type Deps struct {
	Catalog       *catalog.Catalog
	Vectors       *vectorstore.Store
	Conversations *conversation.Store
	Indexer       *indexer.Indexer
	Retrieval     *retrieval.Service
	Generation    *generation.Service
	Tools         *tools.Registry
	ExecutionLog  *toolloop.ExecutionLog
	Settings      *settings.Manager
	Metrics       *metrics.Registry

	// CORSOrigins restricts cross-origin requests per spec.md §6's "CORS
	// origin list" environment override; empty allows any origin.
	CORSOrigins []string
}

// Server wires Deps behind the routes spec.md §6 lists.
type Server struct {
	e *echo.Echo
	Deps
}

// New constructs a Server and registers every route.
func New(deps Deps) *Server {
	e := echo.New()
	if len(deps.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: deps.CORSOrigins}))
	} else {
		e.Use(middleware.CORS())
	}
	e.Use(middleware.Logger())
	e.HTTPErrorHandler = httpErrorHandler

	s := &Server{e: e, Deps: deps}

	e.POST("/generate", s.generate)
	e.POST("/generate-sse", s.generateSSE)
	e.POST("/save-message", s.saveMessage)

	e.POST("/tools/execute", s.toolsExecute)
	e.POST("/tools/stream", s.toolsStream)
	e.GET("/tools", s.listTools)

	e.POST("/rag/directories", s.createDirectory)
	e.GET("/rag/directories", s.listDirectories)
	e.DELETE("/rag/directories/:id", s.deactivateDirectory)
	e.POST("/rag/directories/:id/scan", s.scanDirectory)
	e.POST("/rag/directories/:id/index", s.indexDirectory)
	e.GET("/rag/directories/:id/index-stream", s.indexStream)

	e.POST("/rag/conversations/:cid/context", s.linkContext)
	e.GET("/rag/conversations/:cid/context", s.listContext)
	e.DELETE("/rag/conversations/:cid/context/:did", s.unlinkContext)

	e.POST("/rag/retrieve", s.retrieve)
	e.POST("/rag/clear-index", s.clearIndex)
	e.GET("/rag/index-stats", s.indexStats)

	return s
}

// Serve blocks, accepting connections on ln until ln is closed, matching
// the teacher's Serve(ctx, ln) shape; ctx itself is not consulted.
func (s *Server) Serve(_ context.Context, ln net.Listener) error {
	srv := http.Server{Handler: s.e}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server: failed to serve", "error", err)
		return err
	}
	return nil
}

// ServeMetrics runs the Prometheus exposition endpoint on its own listener,
// matching spec.md's admin-port separation from the main API surface.
func ServeMetrics(_ context.Context, ln net.Listener, reg *metrics.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := http.Server{Handler: mux}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server: failed to serve metrics", "error", err)
		return err
	}
	return nil
}

// statusForKind maps a qerrors.Kind to the HTTP status spec.md §7's table
// assigns it.
func statusForKind(kind qerrors.Kind) int {
	switch kind {
	case qerrors.InputInvalid:
		return http.StatusBadRequest
	case qerrors.NotFound:
		return http.StatusNotFound
	case qerrors.Conflict:
		return http.StatusOK
	case qerrors.PreconditionFailed:
		return http.StatusServiceUnavailable
	case qerrors.ModelFailure:
		return http.StatusBadGateway
	case qerrors.ToolFailure:
		return http.StatusOK
	case qerrors.Cancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// errorJSON writes {"error": "..."} at the status statusForKind assigns err,
// the uniform error envelope spec.md §6 requires of every handler.
func errorJSON(c echo.Context, err error) error {
	kind := qerrors.KindOf(err)
	if kind == qerrors.Cancelled {
		return nil
	}
	if kind == qerrors.IOFailure || kind == qerrors.ModelFailure {
		slog.Error("server: request failed", "kind", kind, "error", err)
	}
	return c.JSON(statusForKind(kind), map[string]string{"error": err.Error()})
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]string{"error": fmt.Sprint(he.Message)})
		return
	}
	_ = errorJSON(c, err)
}
