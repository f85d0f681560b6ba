// Package query runs read-only SQL over parquet objects held in the object
// store.
package query

import (
	"context"
	"time"
)

// Source exposes one stored parquet object as a view.
type Source struct {
	View      string
	ObjectKey string
}

type Request struct {
	SQL      string
	RowLimit int
	Sources  []Source
}

type Result struct {
	Columns      []string
	Rows         [][]any
	ScannedBytes int64
	Duration     time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
