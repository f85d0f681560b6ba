package translate

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sheetsense/sheetsense/internal/dataop"
	"github.com/sheetsense/sheetsense/internal/llm"
	"github.com/sheetsense/sheetsense/internal/prompt"
)

// ParseFilter reads a filter expression from raw model output. Empty output
// and "none" in any case mean no filter. Only the first non-empty line is
// kept; models tend to append explanations.
func ParseFilter(raw string) dataop.FilterOperation {
	text := llm.Sanitize(raw)
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			text = line
			break
		}
	}
	if len(text) >= len("filter:") && strings.EqualFold(text[:len("filter:")], "filter:") {
		text = text[len("filter:"):]
	}
	text = llm.Sanitize(text)
	if text == "" || strings.EqualFold(text, "none") {
		return dataop.NoFilter()
	}
	return dataop.FilterOperation{Expression: text}
}

// looseString accepts JSON strings, numbers and null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = looseString(x)
	case float64, bool:
		*s = looseString(fmt.Sprint(x))
	default:
		return fmt.Errorf("unsupported value %s", string(data))
	}
	return nil
}

type rawChart struct {
	XCol        looseString  `json:"x_col"`
	YCol        *looseString `json:"y_col"`
	Aggregation looseString  `json:"aggregation"`
	GraphType   looseString  `json:"graph_type"`
	Title       looseString  `json:"title"`
	Description looseString  `json:"description"`
}

// ParseCharts reads chart specs from raw model output. It accepts a JSON
// array, a bare object or an object with a "charts" array, optionally
// surrounded by prose. Elements whose x_col is not a column are dropped,
// unknown y columns become null and unknown aggregations become count.
func ParseCharts(raw string, columns []string) []dataop.ChartSpec {
	elements := decodeChartElements(llm.Sanitize(raw))
	known := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		known[column] = struct{}{}
	}

	specs := make([]dataop.ChartSpec, 0, len(elements))
	for _, el := range elements {
		if len(specs) == prompt.MaxCharts {
			break
		}
		x := strings.TrimSpace(string(el.XCol))
		if _, ok := known[x]; !ok {
			continue
		}
		agg, ok := dataop.ParseAggregation(string(el.Aggregation))
		if !ok {
			agg = dataop.AggregationCount
		}
		var y *string
		if el.YCol != nil {
			name := strings.TrimSpace(string(*el.YCol))
			if _, ok := known[name]; ok {
				y = &name
			}
		}
		title := strings.TrimSpace(string(el.Title))
		if title == "" {
			title = defaultTitle(x, y, agg)
		}
		specs = append(specs, dataop.ChartSpec{
			XCol:        x,
			YCol:        y,
			Aggregation: agg,
			GraphType:   dataop.ParseGraphType(string(el.GraphType)),
			Title:       title,
			Description: strings.TrimSpace(string(el.Description)),
		})
	}
	return specs
}

func decodeChartElements(text string) []rawChart {
	if elements, ok := decodeJSONCharts(text); ok {
		return elements
	}
	if fragment, ok := extractJSON(text); ok {
		elements, _ := decodeJSONCharts(fragment)
		return elements
	}
	return nil
}

func decodeJSONCharts(text string) ([]rawChart, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	var items []json.RawMessage
	switch text[0] {
	case '[':
		if err := json.Unmarshal([]byte(text), &items); err != nil {
			return nil, false
		}
	case '{':
		var wrapper struct {
			Charts []json.RawMessage `json:"charts"`
		}
		if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
			return nil, false
		}
		if wrapper.Charts != nil {
			items = wrapper.Charts
		} else {
			items = []json.RawMessage{json.RawMessage(text)}
		}
	default:
		return nil, false
	}

	out := make([]rawChart, 0, len(items))
	for _, item := range items {
		var el rawChart
		if err := json.Unmarshal(item, &el); err != nil {
			continue
		}
		out = append(out, el)
	}
	return out, true
}

// extractJSON returns the outermost array or object embedded in text.
func extractJSON(text string) (string, bool) {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", false
	}
	closing := "]"
	if text[start] == '{' {
		closing = "}"
	}
	end := strings.LastIndex(text, closing)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func defaultTitle(x string, y *string, agg dataop.Aggregation) string {
	if agg == dataop.AggregationCount || y == nil {
		return x + " Distribution"
	}
	return fmt.Sprintf("%s of %s by %s", strings.ToUpper(string(agg[:1]))+string(agg[1:]), *y, x)
}

// KeywordCharts builds count charts for every column whose name shares a
// word longer than three characters with the query. Graph types alternate
// pie, bar, pie... and at most prompt.MaxCharts specs are returned, in
// column order.
func KeywordCharts(query string, columns []string) []dataop.ChartSpec {
	lower := strings.ToLower(query)
	var out []dataop.ChartSpec
	for _, column := range columns {
		if len(out) == prompt.MaxCharts {
			break
		}
		if !mentions(lower, column) {
			continue
		}
		graph := dataop.GraphPie
		if len(out)%2 == 1 {
			graph = dataop.GraphBar
		}
		out = append(out, dataop.ChartSpec{
			XCol:        column,
			Aggregation: dataop.AggregationCount,
			GraphType:   graph,
			Title:       column + " Distribution",
			Description: "Number of rows per " + column + ".",
		})
	}
	return out
}

func mentions(lowerQuery, column string) bool {
	words := strings.FieldsFunc(strings.ToLower(column), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		if utf8.RuneCountInString(word) > 3 && strings.Contains(lowerQuery, word) {
			return true
		}
	}
	return false
}
