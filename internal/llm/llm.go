// Package llm talks to the two inference backends: a local Ollama server
// and the remote Gemini API. Callers only see Client.Infer.
package llm

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBackendUnavailable means the local server did not answer its probe
	// and no remote credential is configured. It is not retryable.
	ErrBackendUnavailable = errors.New("no inference backend reachable and no credential configured")
	// ErrRateLimitExceeded means the remote backend kept answering 429 after
	// every allowed attempt.
	ErrRateLimitExceeded = errors.New("remote inference rate limit exceeded")
)

type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// Request is one prompt. Structured asks the backend for JSON output; it is
// a hint and callers still validate what comes back.
type Request struct {
	Prompt     string
	Structured bool
	Timeout    time.Duration
}

// Config selects and shapes both backends. A blank RemoteAPIKey disables
// the remote backend.
type Config struct {
	LocalURL       string
	LocalModel     string
	ProbeTimeout   time.Duration
	RemoteURL      string
	RemoteModel    string
	RemoteAPIKey   string
	RemoteAttempts int
	RemoteBackoff  time.Duration
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// LocalGenerator is a generator with a cheap liveness probe.
type LocalGenerator interface {
	Generator
	Ping(ctx context.Context) error
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
