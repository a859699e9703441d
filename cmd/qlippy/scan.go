package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type scanFlags struct {
	common  commonFlags
	pattern []string
	exclude []string
}

func newScanCmd() *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "scan <directory-path>",
		Short: "Run change detection for a directory and report counts, without embedding anything",
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

func (f *scanFlags) run(cmd *cobra.Command, args []string) error {
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

	stats, err := rt.Indexer().Scan(ctx, dir.ID)
	if err != nil {
		return runtimeError{err}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scanned %s: %d new, %d modified, %d deleted, %d unchanged\n",
		dir.Path, stats.New, stats.Modified, stats.Deleted, stats.Unchanged)
	return nil
}
