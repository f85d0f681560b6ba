package sampledata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type Service struct {
	cfg  Config
	log  *slog.Logger
	http *http.Client
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Summary  struct {
		Columns    []string       `json:"columns"`
		RowsCount  int            `json:"rows_count"`
		RiskLevels map[string]int `json:"risk_levels,omitempty"`
	} `json:"summary"`
}

func NewService(cfg Config, logger *slog.Logger, client *http.Client) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Service{cfg: cfg, log: logger, http: client}, nil
}

// Run generates one workbook, writes it to the configured output path and
// uploads it when enabled.
func (s *Service) Run(ctx context.Context) error {
	sheet, err := NewGenerator(s.cfg.Seed).Generate(s.cfg.Kind, s.cfg.Rows)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sheet); err != nil {
		return err
	}
	s.log.Info("generated sample workbook",
		slog.String("kind", s.cfg.Kind),
		slog.Int("rows", len(sheet.Rows)),
		slog.Int64("seed", s.cfg.Seed),
		slog.Int("bytes", buf.Len()),
	)

	if s.cfg.Output != "" {
		if err := os.WriteFile(s.cfg.Output, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", s.cfg.Output, err)
		}
		s.log.Info("wrote sample workbook", slog.String("path", s.cfg.Output))
	}
	if !s.cfg.Upload {
		return nil
	}
	return s.upload(ctx, s.fileName(), buf.Bytes())
}

func (s *Service) fileName() string {
	if s.cfg.DatasetName != "" {
		return s.cfg.DatasetName
	}
	if s.cfg.Output != "" {
		return filepath.Base(s.cfg.Output)
	}
	return DefaultFileName(s.cfg.Kind)
}

func (s *Service) upload(ctx context.Context, name string, data []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+"/v1/datasets", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", form.FormDataContentType())
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload request status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	attrs := []any{
		slog.String("dataset", out.Filename),
		slog.Int("rows_count", out.Summary.RowsCount),
		slog.Int("columns", len(out.Summary.Columns)),
	}
	if len(out.Summary.RiskLevels) > 0 {
		attrs = append(attrs, slog.Any("risk_levels", out.Summary.RiskLevels))
	}
	s.log.Info("uploaded sample workbook", attrs...)
	return nil
}
