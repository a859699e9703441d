// Package main implements the qlippy command-line entry point: the cobra
// tree (serve, index, scan) that wires every singleton C1-C14 describe into
// a running process, grounded on the teacher's cmd/root (NewRootCmd,
// PersistentPreRunE logging setup, RuntimeError exit-code discipline).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/edombelayneh/Qlippy/pkg/logging"
)

type rootFlags struct {
	debugMode   bool
	logFilePath string
	jsonLogs    bool
	logFile     *logging.RotatingFile
}

// logFileContextKey carries the active --log-file (if any) from
// PersistentPreRunE down to a subcommand's run, so it can be wired into
// that command's metrics.Registry.
type logFileContextKey struct{}

func logFileFromContext(ctx context.Context) *logging.RotatingFile {
	rf, _ := ctx.Value(logFileContextKey{}).(*logging.RotatingFile)
	return rf
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "qlippy",
		Short: "qlippy - on-device conversational AI runtime",
		Long:  "qlippy indexes local directories, retrieves relevant context, and serves an LLM generation/tool-calling API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, logFile, err := logging.New(logging.Config{
				FilePath: flags.logFilePath,
				Debug:    flags.debugMode,
				JSON:     flags.jsonLogs,
			})
			if err != nil {
				slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)))
				slog.Warn("failed to set up logging, falling back to stderr", "error", err)
				return nil
			}
			if logFile != nil {
				flags.logFile = logFile
				cmd.SetContext(context.WithValue(cmd.Context(), logFileContextKey{}, logFile))
			}
			slog.SetDefault(logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logFile != nil {
				if err := flags.logFile.Close(); err != nil {
					slog.Error("failed to close log file", "error", err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.debugMode, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logFilePath, "log-file", "", "Path to a rotating log file (stderr only if unset)")
	cmd.PersistentFlags().BoolVar(&flags.jsonLogs, "json-logs", false, "Emit structured JSON logs instead of text")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newScanCmd())

	return cmd
}

// execute runs the command tree and maps the result to the exit codes
// spec.md §6 defines: 0 normal, 1 startup precondition failure, 2 fatal
// runtime error.
func execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args ...string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if ctx.Err() != nil {
		return 0
	}

	var precondition preconditionError
	if errors.As(err, &precondition) {
		fmt.Fprintln(stderr, err)
		return 1
	}

	var runtimeErr runtimeError
	if errors.As(err, &runtimeErr) {
		fmt.Fprintln(stderr, err)
		return 2
	}

	fmt.Fprintln(stderr, err)
	fmt.Fprintln(stderr)
	_ = rootCmd.Usage()
	return 1
}

// preconditionError marks a startup failure that should exit 1 (e.g. a
// database that cannot be opened, a settings override that fails to parse).
type preconditionError struct{ err error }

func (e preconditionError) Error() string { return e.err.Error() }
func (e preconditionError) Unwrap() error { return e.err }

// runtimeError marks a failure that occurred after startup succeeded and
// should exit 2; execute prints it to stderr without the usage text.
type runtimeError struct{ err error }

func (e runtimeError) Error() string { return e.err.Error() }
func (e runtimeError) Unwrap() error { return e.err }
