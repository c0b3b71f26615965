// Package upstream opens streaming completions against a language-model provider
// and exposes them as a pull-based sequence of text fragments.
package upstream

import (
	"context"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// Provider starts streaming completions.
type Provider interface {
	// Stream issues one streaming completion call. It returns only after the
	// provider accepted the call; failures to start are UpstreamUnavailable and
	// happen before any fragment exists.
	Stream(ctx context.Context, req *llm.CompletionRequest) (Stream, error)
}

// Stream is a forward-only, single-pass sequence of fragments. It is not safe
// for concurrent use and cannot be restarted.
type Stream interface {
	// Next blocks until the next fragment arrives. It returns io.EOF once the
	// provider signals completion, or a StreamInterrupted error if the stream
	// ends abnormally. Fragments returned earlier stay valid either way.
	Next(ctx context.Context) (string, error)

	// Close releases the upstream connection. It is safe to call more than once.
	Close() error
}
