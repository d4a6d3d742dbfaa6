// Package observability configures structured logging for Primus.
//
// Logs go to stderr so that the interactive harness can own stdout. Every
// line emitted while answering a turn or running an autonomy tick carries
// the trace_id of that unit of work.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bdobrica/Primus/common/redact"
	"github.com/bdobrica/Primus/common/trace"
)

// ParseLevel maps "debug", "warn", and "error" to their slog levels. Anything
// else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewLogger builds a logger writing to w; format "json" selects the JSON
// handler, anything else the text handler.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs a stderr logger as the slog default and returns it.
func Setup(level, format string) *slog.Logger {
	l := NewLogger(os.Stderr, level, format)
	slog.SetDefault(l)
	return l
}

// WithTrace returns base (or the default logger when base is nil) with the
// trace_id from ctx attached, if there is one.
func WithTrace(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return base
	}
	return base.With("trace_id", traceID)
}

// RedactSecrets replaces each sensitive value in msg with "[REDACTED]".
func RedactSecrets(msg string, sensitiveValues ...string) string {
	return redact.String(msg, sensitiveValues...)
}
