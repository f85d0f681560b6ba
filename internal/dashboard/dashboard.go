// Package dashboard keeps the charts a user pinned for a dataset.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sheetsense/sheetsense/internal/assistant"
	"github.com/sheetsense/sheetsense/internal/catalog"
	"github.com/sheetsense/sheetsense/internal/dataop"
	"github.com/sheetsense/sheetsense/internal/translate"
)

var (
	ErrNotFound         = errors.New("saved chart not found")
	ErrNoCharts         = errors.New("no chart could be built for the request")
	ErrInvalidDirection = errors.New("direction must be up or down")
)

type Catalog interface {
	CreateSavedChart(ctx context.Context, in catalog.CreateSavedChartInput) (catalog.SavedChart, error)
	GetSavedChart(ctx context.Context, chartID string) (catalog.SavedChart, error)
	ListSavedCharts(ctx context.Context, dataset string) ([]catalog.SavedChart, error)
	SwapSavedChartPositions(ctx context.Context, firstID, secondID string) error
	DeleteSavedChart(ctx context.Context, chartID string) (bool, error)
}

type ChartTranslator interface {
	Charts(ctx context.Context, q translate.Query) ([]dataop.ChartSpec, error)
}

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, raw)
}

// Entry is a saved chart rendered against the current dataset.
type Entry struct {
	ID       string          `json:"id"`
	Dataset  string          `json:"dataset"`
	Query    string          `json:"query"`
	Position int             `json:"position"`
	Chart    assistant.Chart `json:"chart"`
}

type Service struct {
	catalog      Catalog
	tables       assistant.Tables
	translator   ChartTranslator
	sampleValues int
	logger       *slog.Logger
	newID        func() string
}

// New wires the dashboard. sampleValues must match the assistant's so a
// pinned request sees the same prompt as /v1/charts; <= 0 means
// translate.DefaultSampleValues.
func New(repo Catalog, tables assistant.Tables, translator ChartTranslator, sampleValues int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		catalog:      repo,
		tables:       tables,
		translator:   translator,
		sampleValues: sampleValues,
		logger:       logger,
		newID:        uuid.NewString,
	}
}

// Add translates a chart request and pins every resulting spec. Keyword
// fallback charts are pinned even when inference failed.
func (s *Service) Add(ctx context.Context, dataset, question string) ([]Entry, error) {
	t, err := s.tables.Load(ctx, dataset)
	if err != nil {
		return nil, err
	}
	specs, err := s.translator.Charts(ctx, translate.NewQuery(t, question, s.sampleValues))
	if len(specs) == 0 {
		if err != nil {
			return nil, fmt.Errorf("translate chart request: %w", err)
		}
		return nil, ErrNoCharts
	}
	if err != nil {
		s.logger.WarnContext(ctx, "pinning fallback charts", slog.String("dataset", dataset), slog.Any("error", err))
	}

	rendered := assistant.RenderCharts(t, specs)
	entries := make([]Entry, 0, len(specs))
	for i, spec := range specs {
		body, err := json.Marshal(spec)
		if err != nil {
			return entries, fmt.Errorf("encode chart spec: %w", err)
		}
		saved, err := s.catalog.CreateSavedChart(ctx, catalog.CreateSavedChartInput{
			ChartID:  s.newID(),
			Dataset:  dataset,
			Query:    question,
			SpecJSON: body,
		})
		if err != nil {
			return entries, fmt.Errorf("save chart: %w", err)
		}
		entries = append(entries, Entry{ID: saved.ChartID, Dataset: dataset, Query: question, Position: saved.Position, Chart: rendered[i]})
	}
	return entries, nil
}

// List renders the pinned charts of a dataset in position order. A chart
// whose spec no longer fits the table carries an error.
func (s *Service) List(ctx context.Context, dataset string) ([]Entry, error) {
	t, err := s.tables.Load(ctx, dataset)
	if err != nil {
		return nil, err
	}
	saved, err := s.catalog.ListSavedCharts(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("list saved charts: %w", err)
	}

	entries := make([]Entry, 0, len(saved))
	for _, item := range saved {
		entry := Entry{ID: item.ChartID, Dataset: item.Dataset, Query: item.Query, Position: item.Position}
		var spec dataop.ChartSpec
		if err := json.Unmarshal(item.SpecJSON, &spec); err != nil {
			entry.Chart = assistant.Chart{X: []string{}, Y: []float64{}, Error: fmt.Sprintf("stored chart spec is unreadable: %v", err)}
		} else {
			entry.Chart = assistant.RenderCharts(t, []dataop.ChartSpec{spec})[0]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Move swaps a chart with its neighbour. Moving the first chart up or the
// last chart down is a no-op.
func (s *Service) Move(ctx context.Context, chartID string, direction Direction) error {
	if direction != Up && direction != Down {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	chart, err := s.get(ctx, chartID)
	if err != nil {
		return err
	}
	siblings, err := s.catalog.ListSavedCharts(ctx, chart.Dataset)
	if err != nil {
		return fmt.Errorf("list saved charts: %w", err)
	}
	at := -1
	for i, item := range siblings {
		if item.ChartID == chartID {
			at = i
			break
		}
	}
	if at < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, chartID)
	}
	other := at - 1
	if direction == Down {
		other = at + 1
	}
	if other < 0 || other >= len(siblings) {
		return nil
	}
	if err := s.catalog.SwapSavedChartPositions(ctx, chartID, siblings[other].ChartID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrNotFound, chartID)
		}
		return fmt.Errorf("move saved chart: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, chartID string) error {
	deleted, err := s.catalog.DeleteSavedChart(ctx, chartID)
	if err != nil {
		return fmt.Errorf("delete saved chart: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: %q", ErrNotFound, chartID)
	}
	return nil
}

func (s *Service) get(ctx context.Context, chartID string) (catalog.SavedChart, error) {
	chart, err := s.catalog.GetSavedChart(ctx, chartID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.SavedChart{}, fmt.Errorf("%w: %q", ErrNotFound, chartID)
		}
		return catalog.SavedChart{}, fmt.Errorf("get saved chart: %w", err)
	}
	return chart, nil
}
