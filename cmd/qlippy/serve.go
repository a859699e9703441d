package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/edombelayneh/Qlippy/pkg/chunk"
	"github.com/edombelayneh/Qlippy/pkg/indexer"
	"github.com/edombelayneh/Qlippy/pkg/reindexer"
	"github.com/edombelayneh/Qlippy/pkg/server"
)

type serveFlags struct {
	common      commonFlags
	listenAddr  string
	metricsAddr string
	corsOrigins string
	watch       bool
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/WS API server, background reindexer, and (optionally) the file watcher",
		RunE:  flags.run,
	}

	cmd.Flags().StringVarP(&flags.listenAddr, "listen", "l", ":8080", "Address to listen on (or unix://<path>)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-listen", ":9090", "Address the /metrics endpoint listens on")
	cmd.Flags().StringVar(&flags.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (default: any)")
	cmd.Flags().BoolVar(&flags.watch, "watch", true, "Reindex a directory immediately on filesystem change, alongside the cadence sweep")
	cmd.Flags().StringVar(&flags.common.dbPath, "db", "", "Path to the sqlite database (default: qlippy.db, or $QLIPPY_DB_PATH)")
	cmd.Flags().StringVar(&flags.common.configName, "config", "", "Settings preset: development, production, testing")
	cmd.Flags().StringVar(&flags.common.settingsPath, "settings", "", "Path to a YAML settings override file")
	cmd.Flags().StringSliceVar(&flags.common.systemRoots, "system-root", nil, "Protected directory the delete_file tool refuses to delete under (repeatable; replaces the built-in list)")

	return cmd
}

func (f *serveFlags) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	listenAddr := envOr("QLIPPY_LISTEN", f.listenAddr)
	corsOrigins := splitCSV(envOr("QLIPPY_CORS_ORIGINS", f.corsOrigins))

	rt, err := newRuntime(&f.common, logFileFromContext(ctx))
	if err != nil {
		return err
	}
	defer rt.Close()

	ix := rt.Indexer()

	srv := server.New(server.Deps{
		Catalog:       rt.Catalog,
		Vectors:       rt.Vectors,
		Conversations: rt.Convos,
		Indexer:       ix,
		Retrieval:     rt.Retrieval,
		Generation:    rt.Generation,
		Tools:         rt.Tools,
		ExecutionLog:  rt.Execs,
		Settings:      rt.Settings,
		Metrics:       rt.Metrics,
		CORSOrigins:   corsOrigins,
	})

	ln, err := server.Listen(ctx, listenAddr)
	if err != nil {
		return preconditionError{fmt.Errorf("failed to listen on %s: %w", listenAddr, err)}
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	metricsLn, err := server.Listen(ctx, f.metricsAddr)
	if err != nil {
		return preconditionError{fmt.Errorf("failed to listen on %s: %w", f.metricsAddr, err)}
	}
	go func() {
		<-ctx.Done()
		_ = metricsLn.Close()
	}()
	go func() {
		if err := server.ServeMetrics(ctx, metricsLn, rt.Metrics); err != nil {
			slog.Error("metrics server exited", "error", err)
		}
	}()

	chunking := func() chunk.Config {
		cfg := rt.Settings.Get()
		return chunk.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	}
	embeddingModel := func() string { return rt.Settings.Get().EmbeddingModel }

	progress := make(chan indexer.ProgressEvent, 64)
	go func() {
		for ev := range progress {
			slog.Debug("index progress", "directory_id", ev.DirectoryID, "status", ev.Status, "message", ev.Message)
		}
	}()

	rx := &reindexer.Reindexer{
		Catalog:        rt.Catalog,
		Indexer:        ix,
		EmbeddingModel: embeddingModel,
		Chunking:       chunking,
		Progress:       progress,
	}
	go rx.Run(ctx)

	if f.watch {
		wx := &reindexer.Watcher{
			Catalog:        rt.Catalog,
			Indexer:        ix,
			EmbeddingModel: embeddingModel,
			Chunking:       chunking,
			Progress:       progress,
		}
		go func() {
			if err := wx.Run(ctx); err != nil {
				slog.Warn("file watcher exited", "error", err)
			}
		}()
	}

	fmt.Fprintln(os.Stdout, "listening on "+ln.Addr().String())
	slog.Info("qlippy serving", "addr", ln.Addr().String(), "metrics_addr", metricsLn.Addr().String())

	if err := srv.Serve(ctx, ln); err != nil {
		return runtimeError{err}
	}
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
