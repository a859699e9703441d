package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config controls how the process-wide logger is constructed.
type Config struct {
	// FilePath, if set, routes logs through a RotatingFile in addition to
	// stderr. Empty disables file logging.
	FilePath string
	Debug    bool
	JSON     bool
}

// New builds a slog.Logger per Config and returns it alongside the
// underlying rotating file (nil if file logging was not requested) so the
// caller can Close it on shutdown.
func New(cfg Config) (*slog.Logger, *RotatingFile, error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	var rf *RotatingFile

	if cfg.FilePath != "" {
		var err error
		rf, err = NewRotatingFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stderr, rf)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	return logger, rf, nil
}
