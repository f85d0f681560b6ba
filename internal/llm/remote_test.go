package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type recordingTimer struct {
	waits []time.Duration
	ch    chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{ch: make(chan time.Time, 1)}
}

func (r *recordingTimer) Start(d time.Duration) {
	r.waits = append(r.waits, d)
	r.ch <- time.Now()
}

func (r *recordingTimer) Stop() {}

func (r *recordingTimer) C() <-chan time.Time { return r.ch }

func newRemoteForTest(t *testing.T, srv *httptest.Server) (*RemoteClient, *recordingTimer) {
	t.Helper()
	client, err := NewRemoteClient(Config{
		RemoteURL:      srv.URL,
		RemoteModel:    "gemini-test",
		RemoteAPIKey:   "key-123",
		RemoteAttempts: 3,
		RemoteBackoff:  2 * time.Second,
	}, srv.Client(), nil)
	if err != nil {
		t.Fatalf("NewRemoteClient() error = %v", err)
	}
	timer := newRecordingTimer()
	client.timer = timer
	return client, timer
}

func TestRemoteGenerateExtractsText(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "key-123" {
			t.Errorf("key = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"[{\"x_col\":"},{"text":"\"Status\"}]"}]}}]}`))
	}))
	defer srv.Close()

	client, _ := newRemoteForTest(t, srv)
	got, err := client.Generate(context.Background(), Request{Prompt: "chart it", Structured: true})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `[{"x_col":"Status"}]` {
		t.Fatalf("Generate() = %q", got)
	}

	contents := body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if parts[0].(map[string]any)["text"] != "chart it" {
		t.Fatalf("contents = %#v", contents)
	}
	genCfg, ok := body["generationConfig"].(map[string]any)
	if !ok || genCfg["responseMimeType"] != "application/json" {
		t.Fatalf("generationConfig = %#v", body["generationConfig"])
	}
}

func TestRemoteGenerateToleratesMissingCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	client, _ := newRemoteForTest(t, srv)
	got, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Generate() = %q, want empty", got)
	}
}

func TestRemoteGenerateRateLimitExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	client, timer := newRemoteForTest(t, srv)
	_, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("Generate() error = %v, want ErrRateLimitExceeded", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if want := []time.Duration{2 * time.Second, 4 * time.Second}; !reflect.DeepEqual(timer.waits, want) {
		t.Fatalf("backoff waits = %v, want %v", timer.waits, want)
	}
}

func TestRemoteGenerateRecoversAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"none"}]}}]}`))
	}))
	defer srv.Close()

	client, timer := newRemoteForTest(t, srv)
	got, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "none" {
		t.Fatalf("Generate() = %q", got)
	}
	if want := []time.Duration{2 * time.Second}; !reflect.DeepEqual(timer.waits, want) {
		t.Fatalf("backoff waits = %v, want %v", timer.waits, want)
	}
}

func TestRemoteGenerateOtherStatusIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	client, timer := newRemoteForTest(t, srv)
	_, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if err == nil || errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("Generate() error = %v, want fatal non rate-limit error", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("error = %v, want server message", err)
	}
	if calls.Load() != 1 || len(timer.waits) != 0 {
		t.Fatalf("attempts = %d, waits = %v", calls.Load(), timer.waits)
	}
}

func TestRemoteGenerateStopsWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, _ := newRemoteForTest(t, srv)
	client.timer = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Generate(ctx, Request{Prompt: "p"}); err == nil {
		t.Fatal("Generate() expected error for cancelled context")
	}
}

func TestNewRemoteClientRequiresKey(t *testing.T) {
	if _, err := NewRemoteClient(Config{RemoteURL: "https://example.com", RemoteModel: "m"}, nil, nil); err == nil {
		t.Fatal("NewRemoteClient() expected error without key")
	}
}

func TestNewRemoteClientBoundsRetryPolicy(t *testing.T) {
	base := Config{RemoteURL: "https://example.com", RemoteModel: "m", RemoteAPIKey: "k", RemoteBackoff: 2 * time.Second}

	cfg := base
	cfg.RemoteAttempts = MaxRemoteAttempts + 1
	if _, err := NewRemoteClient(cfg, nil, nil); err == nil {
		t.Fatal("NewRemoteClient() expected error for too many attempts")
	}
	cfg = base
	cfg.RemoteAttempts = 3
	cfg.RemoteBackoff = 2 * time.Hour
	if _, err := NewRemoteClient(cfg, nil, nil); err == nil {
		t.Fatal("NewRemoteClient() expected error for oversized backoff")
	}

	cfg = base
	cfg.RemoteAttempts = MaxRemoteAttempts
	client, err := NewRemoteClient(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewRemoteClient() error = %v", err)
	}
	policy := client.policy()
	prev := time.Duration(0)
	for i := 1; i < MaxRemoteAttempts; i++ {
		wait := policy.NextBackOff()
		if wait <= prev {
			t.Fatalf("wait %d = %s, want more than %s", i, wait, prev)
		}
		prev = wait
	}
	if wait := policy.NextBackOff(); wait != backoff.Stop {
		t.Fatalf("wait after %d attempts = %s, want Stop", MaxRemoteAttempts, wait)
	}
}

func TestRedactKey(t *testing.T) {
	err := redactKey(errors.New(`Post "https://x/v1beta/models/m:generateContent?key=s3cr3t": dial tcp`), "s3cr3t")
	if strings.Contains(err.Error(), "s3cr3t") {
		t.Fatalf("redactKey() = %v", err)
	}
}
