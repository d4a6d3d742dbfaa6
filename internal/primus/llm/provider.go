// Package llm sends composed prompts to an OpenAI-compatible chat endpoint.
//
// The dialogue layer treats the model as a best-effort collaborator: a reply
// that is empty, late, or refused is an ordinary outcome that the caller
// replaces with a fallback string. This package therefore reports every
// failure as an error and never fabricates text.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrNoReply is returned when the endpoint answered but produced no text.
	ErrNoReply = errors.New("llm: no reply")

	// ErrRateLimit is returned when the endpoint reports HTTP 429.
	ErrRateLimit = errors.New("llm: upstream rate limit exceeded")

	// ErrCircuitOpen is returned without contacting the endpoint while the
	// circuit breaker is open after repeated failures.
	ErrCircuitOpen = errors.New("llm: circuit breaker is open")

	// ErrNotConfigured is returned by Offline.
	ErrNotConfigured = errors.New("llm: no API key configured")
)

// Chatter completes a single prompt.
type Chatter interface {
	// ChatOnce returns the model's continuation of prompt, using at most
	// maxTokens tokens. A blank reply is reported as ErrNoReply.
	ChatOnce(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Offline is a Chatter for running without credentials. Every call fails
// with ErrNotConfigured, which callers handle like any other missing reply.
type Offline struct{}

// ChatOnce implements Chatter.
func (Offline) ChatOnce(context.Context, string, int) (string, error) {
	return "", ErrNotConfigured
}
