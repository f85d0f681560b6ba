// Package prompt renders the instructions sent to the language model for
// each translation mode.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// Schema is what a prompt may reveal about a table: its column names and a
// few sample values per column. Rows are never included here.
type Schema struct {
	Columns []string
	Samples map[string][]string
}

type schemaLine struct {
	Name    string
	Samples string
}

func (s Schema) lines() []schemaLine {
	out := make([]schemaLine, 0, len(s.Columns))
	for _, column := range s.Columns {
		line := schemaLine{Name: column}
		if values := s.Samples[column]; len(values) > 0 {
			quoted := make([]string, len(values))
			for i, v := range values {
				quoted[i] = fmt.Sprintf("%q", v)
			}
			line.Samples = strings.Join(quoted, ", ")
		}
		out = append(out, line)
	}
	return out
}

var funcs = template.FuncMap{
	"quoteColumn": QuoteColumn,
}

var filterTemplate = template.Must(template.New("filter").Funcs(funcs).Parse(
	`You translate a question about a spreadsheet into one boolean filter expression.

Columns:
{{- range .Schema}}
- {{quoteColumn .Name}}{{if .Samples}} (examples: {{.Samples}}){{end}}
{{- end}}

Rules:
- Use only the columns listed above, spelled exactly as shown.
- Column names that contain spaces or symbols must be wrapped in backticks, for example ` + "`Risk Level`" + ` == 'High'.
- Compare with ==, !=, <, <=, >, >=, in [...] or not in [...]. Combine conditions with and, or, not and parentheses.
- Quote text values with single quotes and spell them like the examples. Write numbers without quotes.
- Do not call functions, use methods or do arithmetic.
- If the question does not need a filter, answer with the single word none.
- Reply with the expression only. No explanation, no code fences.

Question: {{.Query}}
Filter:`))

var chartTemplate = template.Must(template.New("charts").Funcs(funcs).Parse(
	`You design charts for a spreadsheet dashboard.

Columns:
{{- range .Schema}}
- {{.Name}}{{if .Samples}} (examples: {{.Samples}}){{end}}
{{- end}}

Request: {{.Query}}

Reply with a JSON array. Each element describes one chart and has exactly these keys:
- "x_col": the column to group by. It must be one of the columns above.
- "y_col": the numeric column to aggregate, or null when counting rows.
- "aggregation": one of "count", "sum", "mean", "min", "max".
- "graph_type": one of "bar", "line", "pie", "metric".
- "title": a short chart title.
- "description": one sentence on what the chart shows.

Return between 1 and {{.MaxCharts}} charts. Reply with the JSON array only.`))

var answerTemplate = template.Must(template.New("answer").Parse(
	`You are a data analyst answering a question about a spreadsheet.
{{- if .Summary}}

Dataset summary:
{{.Summary}}
{{- end}}

{{if .Truncated}}Here are the first {{.SampleRows}} of {{.TotalRows}} rows{{else}}Here are all {{.TotalRows}} rows{{end}} as CSV:
{{.SampleCSV}}
Question: {{.Query}}

Answer concisely using only the data shown.{{if .Truncated}} Say so when the answer may depend on rows that are not shown.{{end}}`))

// MaxCharts bounds the number of chart specs requested from the model.
const MaxCharts = 8

// Filter renders the prompt asking for a single filter expression.
func Filter(query string, schema Schema) (string, error) {
	return render(filterTemplate, map[string]any{
		"Query":  strings.TrimSpace(query),
		"Schema": schema.lines(),
	})
}

// Charts renders the prompt asking for a JSON array of chart specs.
func Charts(query string, schema Schema) (string, error) {
	return render(chartTemplate, map[string]any{
		"Query":     strings.TrimSpace(query),
		"Schema":    schema.lines(),
		"MaxCharts": MaxCharts,
	})
}

// AnswerContext is the data sample a free-text answer is grounded in.
type AnswerContext struct {
	SampleCSV  string
	SampleRows int
	TotalRows  int
	Summary    string
}

// Answer renders the prompt for a free-text answer.
func Answer(query string, data AnswerContext) (string, error) {
	return render(answerTemplate, map[string]any{
		"Query":      strings.TrimSpace(query),
		"SampleCSV":  data.SampleCSV,
		"SampleRows": data.SampleRows,
		"TotalRows":  data.TotalRows,
		"Truncated":  data.SampleRows < data.TotalRows,
		"Summary":    strings.TrimSpace(data.Summary),
	})
}

// QuoteColumn wraps a column name in backticks unless it is a plain
// identifier.
func QuoteColumn(name string) string {
	if isIdentifier(name) {
		return name
	}
	return "`" + name + "`"
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	switch strings.ToLower(name) {
	case "and", "or", "not", "in", "true", "false":
		return false
	}
	return true
}

func render(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
