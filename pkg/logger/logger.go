// Package logger configures log/slog for the CLI and the HTTP server and
// carries request IDs through contexts.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type contextKey struct{}

// Setup installs the default slog logger. An empty file writes to stderr so
// command output on stdout stays clean. The returned close function is
// always non-nil.
func Setup(level string, format string, file string) (func() error, error) {
	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return closeFn, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return closeFn, fmt.Errorf("opening log file %s: %w", file, err)
		}
		out = f
		closeFn = f.Close
	}
	slog.SetDefault(New(out, level, format))
	return closeFn, nil
}

// New builds a logger without touching the process default.
func New(w io.Writer, level string, format string) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

// ParseLevel accepts the slog level names in any case, with optional
// offsets such as "warn+2". Anything else is info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
