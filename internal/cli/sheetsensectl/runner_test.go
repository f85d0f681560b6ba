package sheetsensectl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunDatasetsCommand(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"datasets":[{"filename":"vendors.csv"}]}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"--base-url", srv.URL,
		"--api-key", "k1",
		"datasets",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodGet || gotPath != "/v1/datasets" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" {
		t.Fatalf("api key = %q", gotAPIKey)
	}
	if !strings.Contains(stdout.String(), "\n  \"datasets\"") {
		t.Fatalf("expected pretty output, got %q", stdout.String())
	}
}

func TestRunAskJoinsQuestion(t *testing.T) {
	var gotPath string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"answer":"Total rows in dataset: 3 (No specific filter detected)","type":"count"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"--base-url", srv.URL, "ask", "vendors.csv", "how", "many", "vendors?"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/query" {
		t.Fatalf("path = %s", gotPath)
	}
	if body["filename"] != "vendors.csv" || body["query"] != "how many vendors?" {
		t.Fatalf("body = %#v", body)
	}
}

func TestRunChatUsesMessageField(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"kind":"charts"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"--base-url", srv.URL, "chat", "staff.xlsx", "plot costs"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if body["message"] != "plot costs" {
		t.Fatalf("body = %#v", body)
	}
}

func TestRunUploadSendsMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendors.csv")
	if err := os.WriteFile(path, []byte("Vendor\nAcme\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var gotName, gotFilename, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		gotName = r.FormValue("name")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer func() { _ = file.Close() }()
		raw, _ := io.ReadAll(file)
		gotFilename, gotContent = header.Filename, string(raw)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"File uploaded successfully"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"--base-url", srv.URL, "upload", "--name", "q3", path}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotName != "q3" || gotFilename != "vendors.csv" || gotContent != "Vendor\nAcme\n" {
		t.Fatalf("upload name=%q filename=%q content=%q", gotName, gotFilename, gotContent)
	}
}

func TestRunUploadMissingFile(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"upload", filepath.Join(t.TempDir(), "nope.csv")}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_code":"FORBIDDEN"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "delete", "vendors.csv"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "http 403") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	cases := [][]string{
		{},
		{"unknown"},
		{"ask", "vendors.csv"},
		{"--no-such-flag", "health"},
		{"health", "extra"},
	}
	for _, args := range cases {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("args %q: exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("args %q: expected usage output", args)
		}
	}
}

func TestRunDashboardCommands(t *testing.T) {
	var requests []string
	var body map[string]string
	var integrityBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.RequestURI())
		if r.URL.Path == "/v1/maintenance/integrity" {
			raw, _ := io.ReadAll(r.Body)
			integrityBody = string(raw)
		}
		if strings.HasSuffix(r.URL.Path, "/move") {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	for _, args := range [][]string{
		{"dashboard", "list", "q3 vendors.xlsx"},
		{"dashboard", "move", "c-1", "UP"},
		{"dashboard", "unpin", "c-1"},
		{"integrity"},
	} {
		var stderr bytes.Buffer
		code := Run(context.Background(), append([]string{"--base-url", srv.URL}, args...), Options{Stderr: &stderr})
		if code != 0 {
			t.Fatalf("args %q: exit code = %d, stderr=%s", args, code, stderr.String())
		}
	}

	want := []string{
		"GET /v1/dashboard/charts?dataset=q3+vendors.xlsx",
		"POST /v1/dashboard/charts/c-1/move",
		"DELETE /v1/dashboard/charts/c-1",
		"POST /v1/maintenance/integrity",
	}
	if strings.Join(requests, "\n") != strings.Join(want, "\n") {
		t.Fatalf("requests = %q", requests)
	}
	if body["direction"] != "up" {
		t.Fatalf("move body = %#v", body)
	}
	if integrityBody != "" {
		t.Fatalf("integrity body = %q, want empty", integrityBody)
	}
}

func TestRunDashboardMoveRejectsDirection(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"dashboard", "move", "c-1", "sideways"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "direction must be up or down") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
