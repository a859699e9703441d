package main

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/embed"
	"github.com/edombelayneh/Qlippy/pkg/generation"
	"github.com/edombelayneh/Qlippy/pkg/indexer"
	"github.com/edombelayneh/Qlippy/pkg/logging"
	"github.com/edombelayneh/Qlippy/pkg/metrics"
	"github.com/edombelayneh/Qlippy/pkg/retrieval"
	"github.com/edombelayneh/Qlippy/pkg/settings"
	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
	"github.com/edombelayneh/Qlippy/pkg/toolloop"
	"github.com/edombelayneh/Qlippy/pkg/tools"
	"github.com/edombelayneh/Qlippy/pkg/vectorstore"
)

// commonFlags are the singleton-construction knobs every subcommand shares.
type commonFlags struct {
	dbPath       string
	configName   string
	settingsPath string
	systemRoots  []string
}

// runtime bundles every process-wide singleton C1-C14 describe. Subcommands
// build one, use what they need, and close it on exit.
type runtime struct {
	db       *sql.DB
	Catalog  *catalog.Catalog
	Vectors  *vectorstore.Store
	Convos   *conversation.Store
	Embedder *embed.Client
	Handle   *generation.Handle
	Tools    *tools.Registry
	Execs    *toolloop.ExecutionLog
	Settings *settings.Manager
	Metrics  *metrics.Registry

	Retrieval  *retrieval.Service
	Generation *generation.Service
}

// newRuntime opens the database and constructs every singleton, following
// the environment-variable overrides spec.md §275 names: database path,
// CORS origin list, and listen host/port (the latter two are read directly
// by the serve command, which owns the HTTP listener). logFile, if non-nil,
// is the active --log-file; its size and rotation count are exposed as
// metrics gauges.
func newRuntime(f *commonFlags, logFile *logging.RotatingFile) (*runtime, error) {
	preset := settings.Preset(cmp.Or(f.configName, os.Getenv("QLIPPY_CONFIG_NAME"), string(settings.Development)))

	mgr, err := settings.NewManager(preset, f.settingsPath)
	if err != nil {
		return nil, preconditionError{err}
	}

	dbPath := cmp.Or(f.dbPath, os.Getenv("QLIPPY_DB_PATH"), "qlippy.db")
	db, err := sqliteutil.OpenDB(dbPath)
	if err != nil {
		return nil, preconditionError{err}
	}

	cat, err := catalog.Open(db)
	if err != nil {
		db.Close()
		return nil, preconditionError{err}
	}

	ctx := context.Background()
	vectors, err := vectorstore.Open(ctx, db)
	if err != nil {
		db.Close()
		return nil, preconditionError{err}
	}

	convos, err := conversation.Open(db)
	if err != nil {
		db.Close()
		return nil, preconditionError{err}
	}

	execs, err := toolloop.OpenExecutionLog(db)
	if err != nil {
		db.Close()
		return nil, preconditionError{err}
	}

	cfg := mgr.Get()

	embedder := embed.New(embed.LocalLoader(vectors.Dim()))
	handle := generation.NewHandle(generation.LocalLoader("local/default", cfg.ContextWindow))

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, f.systemRoots); err != nil {
		db.Close()
		return nil, preconditionError{err}
	}

	metricsReg := metrics.New()
	if logFile != nil {
		metricsReg.RegisterLogFile(logFile)
	}

	retrievalSvc := &retrieval.Service{
		Embed:         embedder,
		EmbedModelID:  cfg.EmbeddingModel,
		Vectors:       vectors,
		Conversations: convos,

		DefaultTopK:     cfg.DefaultTopK,
		DefaultMinScore: float32(cfg.MinRelevanceScore),
	}

	generationSvc := &generation.Service{
		Handle:        handle,
		ModelID:       "local/default",
		Retrieval:     retrievalSvc,
		Conversations: convos,
		Settings:      mgr.Get,
	}

	return &runtime{
		db:         db,
		Catalog:    cat,
		Vectors:    vectors,
		Convos:     convos,
		Embedder:   embedder,
		Handle:     handle,
		Tools:      registry,
		Execs:      execs,
		Settings:   mgr,
		Metrics:    metricsReg,
		Retrieval:  retrievalSvc,
		Generation: generationSvc,
	}, nil
}

// Indexer builds the single-directory indexing orchestrator (C8) bound to
// this runtime's catalog, vector store, and embedder.
func (r *runtime) Indexer() *indexer.Indexer {
	return indexer.New(r.Catalog, r.Vectors, r.Embedder)
}

func (r *runtime) Close() error {
	var errs []error
	if err := r.Handle.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
