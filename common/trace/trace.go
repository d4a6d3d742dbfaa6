// Package trace generates per-turn trace IDs and carries them through a
// context so that every log line emitted while answering one user turn, or
// while running one autonomy tick, can be correlated.
package trace

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// GenerateID returns a new random trace ID of the form "t_<uuid>".
func GenerateID() string {
	return "t_" + uuid.NewString()
}

// WithTraceID returns a child context carrying the given trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// Ensure returns ctx unchanged when it already carries a trace ID, otherwise
// a child context with a freshly generated one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := GenerateID()
	return WithTraceID(ctx, id), id
}

// FromContext extracts the trace ID from ctx, returning "" if absent.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}
