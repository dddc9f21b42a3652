// Package logging configures log/slog for the import service.
//
// Request-scoped loggers pick up chi's request ID so every entry written
// while serving an upload, a validation, or a batch start can be correlated.
// Batch-scoped loggers carry the batch, job and salon identifiers through
// the background processing that outlives the request.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup installs the global slog logger.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, level, format)))
}

// NewHandler builds the handler Setup installs, writing to w.
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the default logger, tagged with the chi request ID
// when ctx carries one.
//
//	func handleIngest(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("file received", "name", header.Filename)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields returns a request-scoped logger with additional fields.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

// ForBatch returns the logger used for one import batch. The request ID
// of the call that started the batch is kept so background entries can be
// traced back to it.
//
//	log := logging.ForBatch(ctx, batchID, jobID, salonID)
//	log.Info("batch started", "rows", total)
//	// ... later, from a worker goroutine ...
//	log.Warn("row failed", "row", n, "error", err)
func ForBatch(ctx context.Context, batchID, jobID, salonID string) *slog.Logger {
	return FromContext(ctx).With(
		"batch_id", batchID,
		"job_id", jobID,
		"salon_id", salonID,
	)
}
