package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sheetsense/sheetsense/internal/observability"
)

const defaultProbeTimeout = 2 * time.Second

// Client routes inference calls. Every call probes the local backend first:
//
//	probe ok                        -> local
//	local fails, remote configured  -> remote with the same request
//	probe fails, remote configured  -> remote
//	probe fails, no remote          -> ErrBackendUnavailable
type Client struct {
	local        LocalGenerator
	remote       Generator
	probeTimeout time.Duration
	logger       *slog.Logger
}

// New builds both backends from cfg. The remote backend is only created
// when an API key is present.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	local, err := NewLocalClient(cfg.LocalURL, cfg.LocalModel, httpClient)
	if err != nil {
		return nil, err
	}
	var remote Generator
	if strings.TrimSpace(cfg.RemoteAPIKey) != "" {
		rc, err := NewRemoteClient(cfg, httpClient, logger)
		if err != nil {
			return nil, err
		}
		remote = rc
	}
	return NewWithBackends(local, remote, cfg.ProbeTimeout, logger), nil
}

// NewWithBackends wires explicit backends. remote may be nil.
func NewWithBackends(local LocalGenerator, remote Generator, probeTimeout time.Duration, logger *slog.Logger) *Client {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{local: local, remote: remote, probeTimeout: probeTimeout, logger: logger}
}

func (c *Client) RemoteConfigured() bool {
	return c.remote != nil
}

type state int

const (
	stateProbe state = iota
	stateLocal
	stateRemote
	stateUnavailable
)

// Select reports which backend the next call would start on.
func (c *Client) Select(ctx context.Context) (Backend, error) {
	switch c.probe(ctx) {
	case stateLocal:
		return BackendLocal, nil
	case stateRemote:
		return BackendRemote, nil
	default:
		return "", ErrBackendUnavailable
	}
}

// Infer runs req on the selected backend and returns the raw model text.
func (c *Client) Infer(ctx context.Context, req Request) (string, error) {
	st := stateProbe
	for {
		switch st {
		case stateProbe:
			st = c.probe(ctx)

		case stateLocal:
			text, err := c.call(ctx, BackendLocal, c.local, req)
			if err == nil {
				return text, nil
			}
			if c.remote == nil || ctx.Err() != nil {
				return "", err
			}
			c.logger.WarnContext(ctx, "local model failed, falling back to remote",
				slog.String("trace_id", observability.TraceIDFromContext(ctx)),
				slog.String("error", err.Error()),
			)
			observability.IncrementBackendFallback("local_error")
			st = stateRemote

		case stateRemote:
			return c.call(ctx, BackendRemote, c.remote, req)

		case stateUnavailable:
			return "", ErrBackendUnavailable

		default:
			return "", fmt.Errorf("inference: unknown state %d", st)
		}
	}
}

// probe decides the starting state. Probe errors never escape: they only
// mean the local backend is not available.
func (c *Client) probe(ctx context.Context) state {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	err := c.local.Ping(probeCtx)
	switch {
	case err == nil:
		observability.IncrementBackendSelection(string(BackendLocal))
		return stateLocal
	case c.remote != nil:
		c.logger.DebugContext(ctx, "local model unreachable, using remote",
			slog.String("error", err.Error()),
		)
		observability.IncrementBackendSelection(string(BackendRemote))
		return stateRemote
	default:
		c.logger.WarnContext(ctx, "no inference backend available",
			slog.String("error", err.Error()),
		)
		observability.IncrementBackendSelection("unavailable")
		return stateUnavailable
	}
}

func (c *Client) call(ctx context.Context, backend Backend, gen Generator, req Request) (string, error) {
	start := time.Now()
	text, err := gen.Generate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.ObserveInference(string(backend), outcome, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%s inference: %w", backend, err)
	}
	c.logger.DebugContext(ctx, "inference completed",
		slog.String("backend", string(backend)),
		slog.Bool("structured", req.Structured),
		slog.Int("response_chars", len(text)),
		slog.String("duration", time.Since(start).String()),
	)
	return text, nil
}
