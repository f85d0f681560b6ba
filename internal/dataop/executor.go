package dataop

import (
	"strings"

	"github.com/sheetsense/sheetsense/internal/filterexpr"
	"github.com/sheetsense/sheetsense/internal/observability"
	"github.com/sheetsense/sheetsense/internal/table"
)

// Count returns the number of rows matching filter. The no-filter sentinel
// counts every row. Any parse, validation or evaluation failure is returned
// as *InvalidFilterExpressionError and no partial count is reported.
func Count(t *table.Table, filter FilterOperation) (int, error) {
	if filter.IsNone() {
		return t.Len(), nil
	}
	expr, err := filterexpr.Compile(filter.Expression, t.Columns())
	if err != nil {
		observability.IncrementFilterEvaluation("rejected")
		return 0, &InvalidFilterExpressionError{Expression: filter.Expression, Err: err}
	}

	count := 0
	for i := 0; i < t.Len(); i++ {
		matched, err := expr.Match(t.Lookup(i))
		if err != nil {
			observability.IncrementFilterEvaluation("failed")
			return 0, &InvalidFilterExpressionError{Expression: filter.Expression, Err: err}
		}
		if matched {
			count++
		}
	}
	observability.IncrementFilterEvaluation("ok")
	return count, nil
}

// Aggregate groups rows by spec.XCol in first appearance order. Count uses
// every row; the other aggregations read spec.YCol as numbers and skip
// cells that are not numeric. Groups left without a numeric value are
// dropped for mean, min and max and sum to zero.
func Aggregate(t *table.Table, spec ChartSpec) (Series, error) {
	xIdx, ok := t.ColumnIndex(spec.XCol)
	if !ok {
		return Series{}, &UnknownColumnError{Column: spec.XCol}
	}
	agg, ok := ParseAggregation(string(spec.Aggregation))
	if !ok {
		agg = spec.Aggregation
	}

	yIdx := -1
	if agg != AggregationCount {
		if spec.YCol == nil || strings.TrimSpace(*spec.YCol) == "" {
			return Series{}, &MissingYColumnError{Aggregation: agg}
		}
		idx, ok := t.ColumnIndex(*spec.YCol)
		if !ok {
			return Series{}, &MissingYColumnError{Aggregation: agg, YCol: *spec.YCol, Reason: "not a column"}
		}
		yIdx = idx
	}

	groups := newGroups()
	numericCells := 0
	for i := 0; i < t.Len(); i++ {
		g := groups.get(t.Cell(i, xIdx))
		if agg == AggregationCount {
			g.count++
			continue
		}
		num, ok := table.ParseNumber(t.Cell(i, yIdx))
		if !ok {
			continue
		}
		numericCells++
		g.add(num)
	}
	if agg != AggregationCount && numericCells == 0 && t.Len() > 0 {
		return Series{}, &MissingYColumnError{Aggregation: agg, YCol: *spec.YCol, Reason: "no numeric values"}
	}

	series := Series{Categories: []string{}, Values: []float64{}}
	for _, key := range groups.order {
		g := groups.byKey[key]
		var v float64
		switch agg {
		case AggregationCount:
			v = float64(g.count)
		case AggregationSum:
			v = g.sum
		case AggregationMean:
			if g.count == 0 {
				continue
			}
			v = g.sum / float64(g.count)
		case AggregationMin:
			if g.count == 0 {
				continue
			}
			v = g.min
		case AggregationMax:
			if g.count == 0 {
				continue
			}
			v = g.max
		default:
			return Series{}, &MissingYColumnError{Aggregation: agg, YCol: derefOr(spec.YCol), Reason: "unknown aggregation"}
		}
		series.Categories = append(series.Categories, key)
		series.Values = append(series.Values, v)
	}
	return series, nil
}

// MatchingRows returns the rows whose column equals value exactly.
func MatchingRows(t *table.Table, column, value string) (*table.Table, error) {
	idx, ok := t.ColumnIndex(column)
	if !ok {
		return nil, &UnknownColumnError{Column: column}
	}
	var picked []int
	for i := 0; i < t.Len(); i++ {
		if t.Cell(i, idx) == value {
			picked = append(picked, i)
		}
	}
	return t.Select(picked), nil
}

type group struct {
	count    int
	sum      float64
	min, max float64
}

func (g *group) add(v float64) {
	if g.count == 0 || v < g.min {
		g.min = v
	}
	if g.count == 0 || v > g.max {
		g.max = v
	}
	g.sum += v
	g.count++
}

type groups struct {
	order []string
	byKey map[string]*group
}

func newGroups() *groups {
	return &groups{byKey: map[string]*group{}}
}

func (g *groups) get(key string) *group {
	if existing, ok := g.byKey[key]; ok {
		return existing
	}
	created := &group{}
	g.byKey[key] = created
	g.order = append(g.order, key)
	return created
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
