// Package assistant answers questions about stored datasets: counts through
// translated filters, free text from a data sample, and charts from
// translated group-by specs.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sheetsense/sheetsense/internal/dataop"
	"github.com/sheetsense/sheetsense/internal/llm"
	"github.com/sheetsense/sheetsense/internal/observability"
	"github.com/sheetsense/sheetsense/internal/prompt"
	"github.com/sheetsense/sheetsense/internal/risk"
	"github.com/sheetsense/sheetsense/internal/table"
	"github.com/sheetsense/sheetsense/internal/translate"
)

const (
	defaultSampleRows = 50
)

type Tables interface {
	Load(ctx context.Context, name string) (*table.Table, error)
}

type Translator interface {
	Filter(ctx context.Context, q translate.Query) (dataop.FilterOperation, error)
	Charts(ctx context.Context, q translate.Query) ([]dataop.ChartSpec, error)
	Answer(ctx context.Context, question string, data prompt.AnswerContext) (string, error)
}

type AnswerType string

const (
	AnswerCount      AnswerType = "count"
	AnswerGenerative AnswerType = "generative"
	AnswerError      AnswerType = "error"
)

type Answer struct {
	Answer string     `json:"answer"`
	Type   AnswerType `json:"type"`
}

// Chart is one rendered chart. Error is set instead of data when the chart spec
// could not be applied to the table.
type Chart struct {
	X           []string         `json:"x"`
	Y           []float64        `json:"y"`
	XLabel      string           `json:"x_label"`
	YLabel      string           `json:"y_label"`
	GraphType   dataop.GraphType `json:"graph_type"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Error       string           `json:"error,omitempty"`
	Spec        dataop.ChartSpec `json:"spec"`
}

type ChartsResponse struct {
	Charts []Chart `json:"charts"`
	// Message explains an empty or degraded result.
	Message string `json:"message,omitempty"`
}

// Reply is the result of a chat message: either an answer or charts.
type Reply struct {
	Kind   string          `json:"kind"`
	Answer *Answer         `json:"answer,omitempty"`
	Charts *ChartsResponse `json:"charts,omitempty"`
}

type Options struct {
	SampleRows   int
	SampleValues int
}

type Service struct {
	tables       Tables
	translator   Translator
	sampleRows   int
	sampleValues int
	logger       *slog.Logger
}

func New(tables Tables, translator Translator, opts Options, logger *slog.Logger) *Service {
	if opts.SampleRows <= 0 {
		opts.SampleRows = defaultSampleRows
	}
	if opts.SampleValues <= 0 {
		opts.SampleValues = translate.DefaultSampleValues
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		tables:       tables,
		translator:   translator,
		sampleRows:   opts.SampleRows,
		sampleValues: opts.SampleValues,
		logger:       logger,
	}
}

// Ask answers a single question. The returned error is only set when the
// dataset cannot be loaded; translation and inference failures become
// answers of type error.
func (s *Service) Ask(ctx context.Context, dataset, question string) (Answer, error) {
	t, err := s.tables.Load(ctx, dataset)
	if err != nil {
		return Answer{}, err
	}
	if IsCountQuery(question) {
		return s.count(ctx, t, question), nil
	}
	text, err := s.generate(ctx, t, question)
	if err != nil {
		return s.errorAnswer(ctx, err), nil
	}
	return Answer{Answer: text, Type: AnswerGenerative}, nil
}

func (s *Service) count(ctx context.Context, t *table.Table, question string) Answer {
	op, err := s.translator.Filter(ctx, s.query(t, question))
	if err != nil {
		return s.errorAnswer(ctx, err)
	}
	n, err := dataop.Count(t, op)
	if err == nil {
		if op.IsNone() {
			return Answer{Answer: fmt.Sprintf("Total rows in dataset: %d (No specific filter detected)", n), Type: AnswerCount}
		}
		return Answer{Answer: fmt.Sprintf("Count based on filter `%s`: %d", op.Expression, n), Type: AnswerCount}
	}

	var invalid *dataop.InvalidFilterExpressionError
	if !errors.As(err, &invalid) {
		return s.errorAnswer(ctx, err)
	}
	s.logger.InfoContext(ctx, "generated filter rejected, answering from sample",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("expression", invalid.Expression),
		slog.Any("error", invalid.Err),
	)
	text, genErr := s.generate(ctx, t, question)
	if genErr == nil {
		return Answer{Answer: text, Type: AnswerGenerative}
	}
	return Answer{
		Answer: fmt.Sprintf("Could not count. The generated filter `%s` is invalid: %v", invalid.Expression, invalid.Err),
		Type:   AnswerError,
	}
}

func (s *Service) generate(ctx context.Context, t *table.Table, question string) (string, error) {
	sample := t.Head(s.sampleRows)
	csv, err := sample.CSV()
	if err != nil {
		return "", err
	}
	return s.translator.Answer(ctx, question, prompt.AnswerContext{
		SampleCSV:  csv,
		SampleRows: sample.Len(),
		TotalRows:  t.Len(),
		Summary:    risk.Describe(t),
	})
}

// Charts translates a chart request and renders every resulting spec.
func (s *Service) Charts(ctx context.Context, dataset, question string) (ChartsResponse, error) {
	t, err := s.tables.Load(ctx, dataset)
	if err != nil {
		return ChartsResponse{}, err
	}
	specs, err := s.translator.Charts(ctx, s.query(t, question))
	resp := ChartsResponse{Charts: RenderCharts(t, specs)}
	switch {
	case err != nil && len(resp.Charts) == 0:
		resp.Message = UserMessage(err)
	case err != nil:
		resp.Message = "Showing charts for columns named in the question. " + UserMessage(err)
	case len(resp.Charts) == 0:
		resp.Message = "Could not understand the chart request. Try naming a column."
	}
	if err != nil {
		s.logger.WarnContext(ctx, "chart translation failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.Int("fallback_charts", len(resp.Charts)),
			slog.Any("error", err),
		)
	}
	return resp, nil
}

// Chat routes a free-form message to Charts or Ask.
func (s *Service) Chat(ctx context.Context, dataset, message string) (Reply, error) {
	if IsChartQuery(message) {
		charts, err := s.Charts(ctx, dataset, message)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Kind: "charts", Charts: &charts}, nil
	}
	answer, err := s.Ask(ctx, dataset, message)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Kind: "answer", Answer: &answer}, nil
}

// Drilldown returns the rows behind one chart category.
func (s *Service) Drilldown(ctx context.Context, dataset, column, value string) (*table.Table, error) {
	t, err := s.tables.Load(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return dataop.MatchingRows(t, column, value)
}

func (s *Service) query(t *table.Table, question string) translate.Query {
	return translate.NewQuery(t, question, s.sampleValues)
}

func (s *Service) errorAnswer(ctx context.Context, err error) Answer {
	s.logger.WarnContext(ctx, "question failed",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Any("error", err),
	)
	return Answer{Answer: UserMessage(err), Type: AnswerError}
}

// RenderCharts aggregates each spec against t. Specs that cannot be applied
// carry their error instead of data.
func RenderCharts(t *table.Table, specs []dataop.ChartSpec) []Chart {
	charts := make([]Chart, 0, len(specs))
	for _, spec := range specs {
		chart := Chart{
			X:           []string{},
			Y:           []float64{},
			XLabel:      spec.XCol,
			YLabel:      spec.YLabel(),
			GraphType:   spec.GraphType,
			Title:       spec.Title,
			Description: spec.Description,
			Spec:        spec,
		}
		series, err := dataop.Aggregate(t, spec)
		if err != nil {
			chart.Error = err.Error()
		} else {
			chart.X = append(chart.X, series.Categories...)
			chart.Y = append(chart.Y, series.Values...)
		}
		charts = append(charts, chart)
	}
	return charts
}

// UserMessage renders an error for display, with a hint for the failures a
// user can act on.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, llm.ErrBackendUnavailable):
		return "Error: no inference backend reachable and no credential configured. Start the local model server or set SHEETSENSE_REMOTE_LLM_API_KEY."
	case errors.Is(err, llm.ErrRateLimitExceeded):
		return "Error: the remote model is rate limited. Please wait a moment and try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "Error: the model did not answer in time. Please try again."
	default:
		return "Error: " + err.Error()
	}
}
