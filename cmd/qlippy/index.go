package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edombelayneh/Qlippy/pkg/catalog"
	"github.com/edombelayneh/Qlippy/pkg/chunk"
)

type indexFlags struct {
	common  commonFlags
	pattern []string
	exclude []string
}

func newIndexCmd() *cobra.Command {
	var flags indexFlags

	cmd := &cobra.Command{
		Use:   "index <directory-path>",
		Short: "Run the full index pipeline for a directory once, registering it first if needed",
		Args:  cobra.ExactArgs(1),
		RunE:  flags.run,
	}

	cmd.Flags().StringSliceVar(&flags.pattern, "pattern", []string{"**/*"}, "Glob include pattern (repeatable)")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude", nil, "Glob exclude pattern (repeatable)")
	cmd.Flags().StringVar(&flags.common.dbPath, "db", "", "Path to the sqlite database (default: qlippy.db, or $QLIPPY_DB_PATH)")
	cmd.Flags().StringVar(&flags.common.configName, "config", "", "Settings preset: development, production, testing")
	cmd.Flags().StringVar(&flags.common.settingsPath, "settings", "", "Path to a YAML settings override file")

	return cmd
}

func (f *indexFlags) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(&f.common, logFileFromContext(ctx))
	if err != nil {
		return err
	}
	defer rt.Close()

	dir, err := findOrCreateDirectory(ctx, rt.Catalog, args[0], f.pattern, f.exclude)
	if err != nil {
		return runtimeError{err}
	}

	cfg := rt.Settings.Get()
	stats, err := rt.Indexer().Index(ctx, dir.ID, cfg.EmbeddingModel,
		chunk.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}, nil)
	if err != nil {
		return runtimeError{err}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %s: %d new, %d modified, %d deleted, %d unchanged\n",
		dir.Path, stats.New, stats.Modified, stats.Deleted, stats.Unchanged)
	return nil
}

// findOrCreateDirectory registers path as a catalog directory on first use
// so `index`/`scan` work directly against a filesystem path without
// requiring a prior `POST /rag/directories` call.
func findOrCreateDirectory(ctx context.Context, cat *catalog.Catalog, path string, include, exclude []string) (catalog.Directory, error) {
	dirs, err := cat.ListDirectories(ctx)
	if err != nil {
		return catalog.Directory{}, err
	}
	for _, d := range dirs {
		if d.Path == path {
			return d, nil
		}
	}
	return cat.CreateDirectory(ctx, catalog.Directory{
		Path:            path,
		IncludePatterns: include,
		ExcludePatterns: exclude,
		CadenceMinutes:  60,
	})
}
