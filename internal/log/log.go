package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler the process logs through. Format is "text" or
// "json"; an empty File logs to stderr without rotation.
type Options struct {
	Level     string
	Format    string
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// Setup builds the process logger: level and format selection, email
// redaction, and size-based rotation when a file is configured. The returned
// closer is a no-op for stderr output.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var writer io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating, err := NewRotatingWriter(RotationConfig{
			File:      opts.File,
			MaxSizeMB: opts.MaxSizeMB,
			MaxFiles:  opts.MaxFiles,
		})
		if err != nil {
			return nil, nil, err
		}
		writer = rotating
		closer = rotating
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		inner = slog.NewTextHandler(writer, handlerOpts)
	case "json":
		inner = slog.NewJSONHandler(writer, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	return slog.New(NewRedactingHandler(inner)), closer, nil
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", raw)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
