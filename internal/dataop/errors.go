package dataop

import (
	"fmt"
)

// InvalidFilterExpressionError reports a filter that failed to parse,
// referenced an unknown column or failed during evaluation.
type InvalidFilterExpressionError struct {
	Expression string
	Err        error
}

func (e *InvalidFilterExpressionError) Error() string {
	return fmt.Sprintf("invalid filter %q: %v", e.Expression, e.Err)
}

func (e *InvalidFilterExpressionError) Unwrap() error { return e.Err }

// MissingYColumnError reports a non-count aggregation without a usable
// value column.
type MissingYColumnError struct {
	Aggregation Aggregation
	YCol        string
	Reason      string
}

func (e *MissingYColumnError) Error() string {
	if e.YCol == "" {
		return fmt.Sprintf("%s aggregation requires a y column", e.Aggregation)
	}
	return fmt.Sprintf("%s aggregation cannot use y column %q: %s", e.Aggregation, e.YCol, e.Reason)
}

type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}
