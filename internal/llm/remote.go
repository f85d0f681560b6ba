package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/sheetsense/sheetsense/internal/observability"
)

var errRateLimited = errors.New("remote backend answered 429")

// MaxRemoteAttempts bounds Config.RemoteAttempts; the backoff cap grows as
// RemoteBackoff << attempts.
const MaxRemoteAttempts = 10

// RemoteClient calls the Gemini generateContent REST endpoint. HTTP 429 is
// retried with exponential backoff; every other failure ends the call.
type RemoteClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	attempts   int
	backoff    time.Duration
	logger     *slog.Logger
	timer      backoff.Timer
}

type generateContentRequest struct {
	Contents         []*genai.Content  `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func NewRemoteClient(cfg Config, httpClient *http.Client, logger *slog.Logger) (*RemoteClient, error) {
	if strings.TrimSpace(cfg.RemoteAPIKey) == "" {
		return nil, fmt.Errorf("remote api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.RemoteURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse remote model url: %w", err)
	}
	if strings.TrimSpace(cfg.RemoteModel) == "" {
		return nil, fmt.Errorf("remote model name is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	attempts := cfg.RemoteAttempts
	if attempts < 1 {
		attempts = 1
	}
	if attempts > MaxRemoteAttempts {
		return nil, fmt.Errorf("remote attempts %d exceeds %d", attempts, MaxRemoteAttempts)
	}
	if cfg.RemoteBackoff < 0 || cfg.RemoteBackoff > time.Hour {
		return nil, fmt.Errorf("remote backoff %s must be between 0 and 1h", cfg.RemoteBackoff)
	}
	return &RemoteClient{
		httpClient: httpClient,
		baseURL:    base,
		model:      strings.TrimSpace(cfg.RemoteModel),
		apiKey:     cfg.RemoteAPIKey,
		attempts:   attempts,
		backoff:    cfg.RemoteBackoff,
		logger:     logger,
	}, nil
}

func (r *RemoteClient) Generate(ctx context.Context, req Request) (string, error) {
	payload := generateContentRequest{
		Contents: []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.Prompt}},
		}},
	}
	if req.Structured {
		payload.GenerationConfig = &generationConfig{ResponseMIMEType: "application/json"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode remote request: %w", err)
	}

	var (
		text     string
		attempts int
	)
	operation := func() error {
		attempts++
		out, err := r.attempt(ctx, body, req.Timeout)
		if err != nil {
			return err
		}
		text = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		observability.IncrementRateLimitRetry()
		r.logger.WarnContext(ctx, "remote model rate limited, backing off",
			slog.Int("attempt", attempts),
			slog.String("wait", wait.String()),
		)
	}

	err = backoff.RetryNotifyWithTimer(operation, backoff.WithContext(r.policy(), ctx), notify, r.timer)
	if errors.Is(err, errRateLimited) {
		return "", fmt.Errorf("%w after %d attempts", ErrRateLimitExceeded, attempts)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// policy waits backoff, 2*backoff, 4*backoff... between attempts with no
// jitter and stops after the configured attempt count.
func (r *RemoteClient) policy() backoff.BackOff {
	if r.attempts <= 1 {
		return &backoff.StopBackOff{}
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.backoff
	expo.RandomizationFactor = 0
	expo.Multiplier = 2
	expo.MaxInterval = r.backoff << uint(r.attempts)
	expo.MaxElapsedTime = 0
	expo.Reset()
	return backoff.WithMaxRetries(expo, uint64(r.attempts-1))
}

func (r *RemoteClient) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		r.baseURL, url.PathEscape(r.model), url.QueryEscape(r.apiKey))
}

func (r *RemoteClient) attempt(ctx context.Context, body []byte, timeout time.Duration) (string, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build remote request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("remote request: %w", redactKey(err, r.apiKey)))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("read remote response: %w", err))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", errRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", backoff.Permanent(fmt.Errorf("remote model returned %d: %s", resp.StatusCode, remoteErrorMessage(raw)))
	}

	var parsed genai.GenerateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode remote response: %w", err))
	}
	return candidateText(&parsed), nil
}

// candidateText joins the text parts of the first candidate. A response
// without candidates yields an empty string.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func remoteErrorMessage(raw []byte) string {
	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return "empty body"
	}
	return msg
}

// redactKey keeps the API key out of url.Error messages.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := err.Error()
	redacted := strings.ReplaceAll(strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED"), key, "REDACTED")
	if redacted == msg {
		return err
	}
	return errors.New(redacted)
}
