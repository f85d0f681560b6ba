// Package sheetsensectl implements the command line client for the
// SheetSense API.
package sheetsensectl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// requestError marks failures after the command line was accepted. They
// exit with 1; everything else is a usage error and exits with 2.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	stdout  io.Writer
}

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCommand(defaults, stdout)
	root.SetArgs(args)
	root.SetOut(stderr)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		_, _ = fmt.Fprintln(stderr, reqErr.Error())
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
	_ = root.Usage()
	return 2
}

func newRootCommand(defaults Options, stdout io.Writer) *cobra.Command {
	var (
		baseURL string
		apiKey  string
		timeout time.Duration
	)
	c := &client{stdout: stdout}

	root := &cobra.Command{
		Use:           "sheetsensectl",
		Short:         "Ask questions about spreadsheets stored in SheetSense",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
			c.apiKey = strings.TrimSpace(apiKey)
			c.http = defaults.HTTPClient
			if c.http == nil {
				c.http = &http.Client{Timeout: timeout}
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return errors.New("a command is required")
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return err })
	root.PersistentFlags().StringVar(&baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "SheetSense API base URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	root.PersistentFlags().DurationVar(&timeout, "timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 30s)")

	root.AddCommand(
		getCommand(c, "health", "Service liveness", "/v1/health"),
		getCommand(c, "ready", "Catalog and object store readiness", "/v1/ready"),
		getCommand(c, "backend", "Inference backend the next question would use", "/v1/backend"),
		getCommand(c, "datasets", "List uploaded datasets", "/v1/datasets"),
		uploadCommand(c),
		&cobra.Command{
			Use:   "delete <dataset>",
			Short: "Delete a dataset and its pinned charts",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(cmd.Context(), http.MethodDelete, "/v1/datasets/"+url.PathEscape(args[0]), "", nil)
			},
		},
		questionCommand(c, "ask", "Answer a question about a dataset", "/v1/query", "query"),
		questionCommand(c, "chart", "Build charts for a request", "/v1/charts", "query"),
		questionCommand(c, "chat", "Send a message and let the server pick answer or charts", "/v1/chat", "message"),
		questionCommand(c, "pin", "Pin the charts for a request to the dashboard", "/v1/dashboard/charts", "query"),
		dashboardCommand(c),
		&cobra.Command{
			Use:   "integrity",
			Short: "Check that every dataset snapshot is present in the object store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.do(cmd.Context(), http.MethodPost, "/v1/maintenance/integrity", "", nil)
			},
		},
	)
	return root
}

func dashboardCommand(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Manage pinned dashboard charts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <dataset>",
			Short: "Render the pinned charts of a dataset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "/v1/dashboard/charts?dataset=" + url.QueryEscape(args[0])
				return c.do(cmd.Context(), http.MethodGet, path, "", nil)
			},
		},
		&cobra.Command{
			Use:   "unpin <chart-id>",
			Short: "Remove a pinned chart",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(cmd.Context(), http.MethodDelete, "/v1/dashboard/charts/"+url.PathEscape(args[0]), "", nil)
			},
		},
		&cobra.Command{
			Use:   "move <chart-id> <up|down>",
			Short: "Move a pinned chart one position",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				direction := strings.ToLower(strings.TrimSpace(args[1]))
				if direction != "up" && direction != "down" {
					return fmt.Errorf("direction must be up or down, got %q", args[1])
				}
				body, err := json.Marshal(map[string]string{"direction": direction})
				if err != nil {
					return err
				}
				path := "/v1/dashboard/charts/" + url.PathEscape(args[0]) + "/move"
				return c.do(cmd.Context(), http.MethodPost, path, "application/json", bytes.NewReader(body))
			},
		},
	)
	return cmd
}

func getCommand(c *client, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.do(cmd.Context(), http.MethodGet, path, "", nil)
		},
	}
}

// questionCommand posts {filename, <field>} where the text is every
// argument after the dataset name.
func questionCommand(c *client, use, short, path, field string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <dataset> <text...>",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" {
				return errors.New("text must not be empty")
			}
			body, err := json.Marshal(map[string]string{"filename": args[0], field: text})
			if err != nil {
				return err
			}
			return c.do(cmd.Context(), http.MethodPost, path, "application/json", bytes.NewReader(body))
		},
	}
}

func uploadCommand(c *client) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, contentType, err := multipartBody(args[0], name)
			if err != nil {
				return &requestError{err: err}
			}
			return c.do(cmd.Context(), http.MethodPost, "/v1/datasets", contentType, body)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "dataset name (defaults to the file name)")
	return cmd
}

func multipartBody(path, name string) (io.Reader, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if name != "" {
		if err := writer.WriteField("name", name); err != nil {
			return nil, "", err
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *client) do(ctx context.Context, method, path, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return &requestError{err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))}
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(c.stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(c.stdout, string(responseBody))
	}
	return nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
