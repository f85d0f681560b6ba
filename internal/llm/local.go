package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// LocalClient calls an Ollama server.
type LocalClient struct {
	api   *api.Client
	model string
}

func NewLocalClient(baseURL, model string, httpClient *http.Client) (*LocalClient, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse local model url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("local model url %q must include scheme and host", baseURL)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("local model name is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &LocalClient{api: api.NewClient(base, httpClient), model: model}, nil
}

// Ping lists the installed models, which only succeeds when the server is up.
func (l *LocalClient) Ping(ctx context.Context) error {
	if _, err := l.api.List(ctx); err != nil {
		return fmt.Errorf("list local models: %w", err)
	}
	return nil
}

func (l *LocalClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	stream := false
	genReq := &api.GenerateRequest{
		Model:  l.model,
		Prompt: req.Prompt,
		Stream: &stream,
	}
	if req.Structured {
		genReq.Format = json.RawMessage(`"json"`)
	}

	var (
		out  strings.Builder
		done bool
	)
	err := l.api.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		done = done || resp.Done
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("local generate: %w", err)
	}
	if !done && out.Len() == 0 {
		return "", fmt.Errorf("local generate: empty response from %s", l.model)
	}
	return out.String(), nil
}
