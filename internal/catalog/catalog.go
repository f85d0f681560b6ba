package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("catalog: not found")

type Repository interface {
	HealthCheck(ctx context.Context) error
	UpsertDataset(ctx context.Context, in UpsertDatasetInput) (Dataset, error)
	GetDataset(ctx context.Context, name string) (Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
	DeleteDataset(ctx context.Context, name string) (bool, error)
	CreateSavedChart(ctx context.Context, in CreateSavedChartInput) (SavedChart, error)
	GetSavedChart(ctx context.Context, chartID string) (SavedChart, error)
	ListSavedCharts(ctx context.Context, dataset string) ([]SavedChart, error)
	SwapSavedChartPositions(ctx context.Context, firstID, secondID string) error
	DeleteSavedChart(ctx context.Context, chartID string) (bool, error)
}

// Dataset is the catalog record of an uploaded sheet. Columns keeps the
// header order; the snapshot only stores cells.
type Dataset struct {
	DatasetID  string
	Name       string
	Filename   string
	ObjectKey  string
	Format     string
	Columns    []string
	RowCount   int64
	SizeBytes  int64
	CreatedAt  time.Time
	UploadedAt time.Time
}

type UpsertDatasetInput struct {
	DatasetID string
	Name      string
	Filename  string
	ObjectKey string
	Format    string
	Columns   []string
	RowCount  int64
	SizeBytes int64
}

// SavedChart is a dashboard entry. SpecJSON is the serialized chart spec.
type SavedChart struct {
	ChartID   string
	Dataset   string
	Query     string
	SpecJSON  []byte
	Position  int
	CreatedAt time.Time
}

type CreateSavedChartInput struct {
	ChartID  string
	Dataset  string
	Query    string
	SpecJSON []byte
}
