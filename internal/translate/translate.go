// Package translate turns model output into validated data operations.
// Malformed output never fails a translation: filters degrade to "no
// filter" or are rejected by the executor, and chart requests fall back to
// a keyword heuristic over the column names.
package translate

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sheetsense/sheetsense/internal/dataop"
	"github.com/sheetsense/sheetsense/internal/llm"
	"github.com/sheetsense/sheetsense/internal/observability"
	"github.com/sheetsense/sheetsense/internal/prompt"
	"github.com/sheetsense/sheetsense/internal/table"
)

// DefaultSampleValues is the number of distinct values per column shown to
// the model when the caller does not configure one.
const DefaultSampleValues = 3

type Inferer interface {
	Infer(ctx context.Context, req llm.Request) (string, error)
}

type Timeouts struct {
	Filter time.Duration
	Chart  time.Duration
	Answer time.Duration
}

// Query is a question plus what the model may see of the table.
type Query struct {
	Text    string
	Columns []string
	Samples map[string][]string
}

// NewQuery builds the model's view of t: every column name and up to
// sampleValues distinct values per column.
func NewQuery(t *table.Table, text string, sampleValues int) Query {
	if sampleValues <= 0 {
		sampleValues = DefaultSampleValues
	}
	return Query{Text: text, Columns: t.Columns(), Samples: t.Samples(sampleValues)}
}

func (q Query) schema() prompt.Schema {
	return prompt.Schema{Columns: q.Columns, Samples: q.Samples}
}

type Translator struct {
	inferer  Inferer
	timeouts Timeouts
	logger   *slog.Logger
}

func New(inferer Inferer, timeouts Timeouts, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Translator{inferer: inferer, timeouts: timeouts, logger: logger}
}

// Filter asks the model for a filter expression. Only inference failures
// are returned as errors.
func (t *Translator) Filter(ctx context.Context, q Query) (dataop.FilterOperation, error) {
	text, err := prompt.Filter(q.Text, q.schema())
	if err != nil {
		return dataop.NoFilter(), err
	}
	raw, err := t.inferer.Infer(ctx, llm.Request{Prompt: text, Timeout: t.timeouts.Filter})
	if err != nil {
		return dataop.NoFilter(), err
	}

	op := ParseFilter(raw)
	source := "model"
	if op.IsNone() {
		source = "none"
	}
	observability.IncrementTranslation("filter", source)
	t.logger.DebugContext(ctx, "filter translated",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("expression", op.Expression),
	)
	return op, nil
}

// Charts asks the model for chart specs. When the model output yields no
// usable chart the keyword heuristic is used instead. On inference failure
// the heuristic result is returned together with the error so callers can
// still render something.
func (t *Translator) Charts(ctx context.Context, q Query) ([]dataop.ChartSpec, error) {
	text, err := prompt.Charts(q.Text, q.schema())
	if err != nil {
		return nil, err
	}
	raw, err := t.inferer.Infer(ctx, llm.Request{Prompt: text, Structured: true, Timeout: t.timeouts.Chart})
	if err != nil {
		fallback := KeywordCharts(q.Text, q.Columns)
		if len(fallback) > 0 {
			observability.IncrementTranslation("charts", "fallback")
		}
		return fallback, err
	}

	specs := ParseCharts(raw, q.Columns)
	if len(specs) > 0 {
		observability.IncrementTranslation("charts", "model")
		return specs, nil
	}

	fallback := KeywordCharts(q.Text, q.Columns)
	source := "fallback"
	if len(fallback) == 0 {
		source = "none"
	}
	observability.IncrementTranslation("charts", source)
	t.logger.InfoContext(ctx, "model chart output unusable, using keyword fallback",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Int("fallback_charts", len(fallback)),
	)
	return fallback, nil
}

// Answer asks the model for a free-text answer grounded in data.
func (t *Translator) Answer(ctx context.Context, question string, data prompt.AnswerContext) (string, error) {
	text, err := prompt.Answer(question, data)
	if err != nil {
		return "", err
	}
	raw, err := t.inferer.Infer(ctx, llm.Request{Prompt: text, Timeout: t.timeouts.Answer})
	if err != nil {
		return "", err
	}
	observability.IncrementTranslation("answer", "model")
	return llm.Sanitize(raw), nil
}
