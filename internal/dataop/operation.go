// Package dataop defines the bounded operations a question can be turned
// into and executes them against a table.
package dataop

import (
	"strings"
)

// FilterOperation is a single boolean filter expression. The zero value is
// the "no filter" sentinel and selects every row.
type FilterOperation struct {
	Expression string
}

func NoFilter() FilterOperation { return FilterOperation{} }

func (f FilterOperation) IsNone() bool {
	return strings.TrimSpace(f.Expression) == ""
}

type Aggregation string

const (
	AggregationCount Aggregation = "count"
	AggregationSum   Aggregation = "sum"
	AggregationMean  Aggregation = "mean"
	AggregationMin   Aggregation = "min"
	AggregationMax   Aggregation = "max"
)

// ParseAggregation maps model output onto a known aggregation. Empty and
// "none" mean count; common synonyms are accepted.
func ParseAggregation(raw string) (Aggregation, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none", "null", "count", "size", "frequency":
		return AggregationCount, true
	case "sum", "total":
		return AggregationSum, true
	case "mean", "avg", "average":
		return AggregationMean, true
	case "min", "minimum":
		return AggregationMin, true
	case "max", "maximum":
		return AggregationMax, true
	}
	return "", false
}

type GraphType string

const (
	GraphBar    GraphType = "bar"
	GraphLine   GraphType = "line"
	GraphPie    GraphType = "pie"
	GraphMetric GraphType = "metric"
)

// ParseGraphType falls back to bar for anything unrecognised.
func ParseGraphType(raw string) GraphType {
	switch GraphType(strings.ToLower(strings.TrimSpace(raw))) {
	case GraphLine, "trend":
		return GraphLine
	case GraphPie, "donut":
		return GraphPie
	case GraphMetric, "kpi", "number":
		return GraphMetric
	default:
		return GraphBar
	}
}

// ChartSpec describes one group-by aggregation. YCol is nil for counts.
type ChartSpec struct {
	XCol        string      `json:"x_col"`
	YCol        *string     `json:"y_col"`
	Aggregation Aggregation `json:"aggregation"`
	GraphType   GraphType   `json:"graph_type"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
}

// YLabel is the axis label of the aggregated values.
func (c ChartSpec) YLabel() string {
	if c.Aggregation == AggregationCount || c.YCol == nil {
		return string(AggregationCount)
	}
	return *c.YCol
}

// Series is the result of an aggregation: one value per category, in first
// appearance order.
type Series struct {
	Categories []string
	Values     []float64
}

func (s Series) Total() float64 {
	var total float64
	for _, v := range s.Values {
		total += v
	}
	return total
}
