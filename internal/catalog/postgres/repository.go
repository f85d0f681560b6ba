package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sheetsense/sheetsense/internal/catalog"
)

const (
	positionConstraint  = "uq_saved_chart_dataset_position"
	maxPositionAttempts = 5
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalog db: %w", err)
	}
	return nil
}

func (r *Repository) UpsertDataset(ctx context.Context, in catalog.UpsertDatasetInput) (catalog.Dataset, error) {
	columns := in.Columns
	if columns == nil {
		columns = []string{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return catalog.Dataset{}, fmt.Errorf("marshal dataset columns: %w", err)
	}

	query := `
INSERT INTO dataset (dataset_id, name, filename, object_key, format, columns_json, row_count, size_bytes)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
ON CONFLICT (name)
DO UPDATE SET dataset_id = EXCLUDED.dataset_id,
	filename = EXCLUDED.filename,
	object_key = EXCLUDED.object_key,
	format = EXCLUDED.format,
	columns_json = EXCLUDED.columns_json,
	row_count = EXCLUDED.row_count,
	size_bytes = EXCLUDED.size_bytes,
	uploaded_at = NOW()
RETURNING created_at, uploaded_at`

	dataset := catalog.Dataset{
		DatasetID: in.DatasetID,
		Name:      in.Name,
		Filename:  in.Filename,
		ObjectKey: in.ObjectKey,
		Format:    in.Format,
		Columns:   columns,
		RowCount:  in.RowCount,
		SizeBytes: in.SizeBytes,
	}
	if err := r.db.QueryRowContext(ctx, query,
		in.DatasetID, in.Name, in.Filename, in.ObjectKey, in.Format, string(columnsJSON), in.RowCount, in.SizeBytes,
	).Scan(&dataset.CreatedAt, &dataset.UploadedAt); err != nil {
		return catalog.Dataset{}, fmt.Errorf("upsert dataset: %w", err)
	}
	return dataset, nil
}

const datasetColumns = `dataset_id, name, filename, object_key, format, columns_json, row_count, size_bytes, created_at, uploaded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (catalog.Dataset, error) {
	var (
		dataset     catalog.Dataset
		columnsJSON []byte
	)
	if err := row.Scan(
		&dataset.DatasetID,
		&dataset.Name,
		&dataset.Filename,
		&dataset.ObjectKey,
		&dataset.Format,
		&columnsJSON,
		&dataset.RowCount,
		&dataset.SizeBytes,
		&dataset.CreatedAt,
		&dataset.UploadedAt,
	); err != nil {
		return catalog.Dataset{}, err
	}
	if err := json.Unmarshal(columnsJSON, &dataset.Columns); err != nil {
		return catalog.Dataset{}, fmt.Errorf("decode columns of dataset %q: %w", dataset.Name, err)
	}
	return dataset, nil
}

func (r *Repository) GetDataset(ctx context.Context, name string) (catalog.Dataset, error) {
	query := `
SELECT ` + datasetColumns + `
FROM dataset
WHERE name = $1`

	dataset, err := scanDataset(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Dataset{}, catalog.ErrNotFound
		}
		return catalog.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return dataset, nil
}

func (r *Repository) ListDatasets(ctx context.Context) ([]catalog.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+datasetColumns+`
FROM dataset
ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	datasets := make([]catalog.Dataset, 0)
	for rows.Next() {
		dataset, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		datasets = append(datasets, dataset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset rows: %w", err)
	}
	return datasets, nil
}

// DeleteDataset removes the dataset and its saved charts.
func (r *Repository) DeleteDataset(ctx context.Context, name string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete dataset tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM saved_chart WHERE dataset_name = $1`, name); err != nil {
		return false, fmt.Errorf("delete saved charts of dataset: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM dataset WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete dataset: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete dataset rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete dataset tx: %w", err)
	}
	return affected > 0, nil
}

// CreateSavedChart appends a chart after the last position of its dataset.
// Concurrent appends that pick the same position are retried.
func (r *Repository) CreateSavedChart(ctx context.Context, in catalog.CreateSavedChartInput) (catalog.SavedChart, error) {
	query := `
INSERT INTO saved_chart (chart_id, dataset_name, query_text, spec_json, position)
VALUES ($1, $2, $3, $4::jsonb, (SELECT COALESCE(MAX(position), 0) + 1 FROM saved_chart WHERE dataset_name = $2))
RETURNING position, created_at`

	chart := catalog.SavedChart{
		ChartID:  in.ChartID,
		Dataset:  in.Dataset,
		Query:    in.Query,
		SpecJSON: in.SpecJSON,
	}
	var err error
	for attempt := 1; attempt <= maxPositionAttempts; attempt++ {
		err = r.db.QueryRowContext(ctx, query, in.ChartID, in.Dataset, in.Query, string(in.SpecJSON)).
			Scan(&chart.Position, &chart.CreatedAt)
		if err == nil {
			return chart, nil
		}
		if !isPositionConflict(err) {
			break
		}
	}
	return catalog.SavedChart{}, fmt.Errorf("create saved chart: %w", err)
}

func isPositionConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == positionConstraint
}

const savedChartColumns = `chart_id, dataset_name, query_text, spec_json, position, created_at`

func scanSavedChart(row rowScanner) (catalog.SavedChart, error) {
	var chart catalog.SavedChart
	err := row.Scan(&chart.ChartID, &chart.Dataset, &chart.Query, &chart.SpecJSON, &chart.Position, &chart.CreatedAt)
	return chart, err
}

func (r *Repository) GetSavedChart(ctx context.Context, chartID string) (catalog.SavedChart, error) {
	query := `
SELECT ` + savedChartColumns + `
FROM saved_chart
WHERE chart_id = $1`

	chart, err := scanSavedChart(r.db.QueryRowContext(ctx, query, chartID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.SavedChart{}, catalog.ErrNotFound
		}
		return catalog.SavedChart{}, fmt.Errorf("get saved chart: %w", err)
	}
	return chart, nil
}

func (r *Repository) ListSavedCharts(ctx context.Context, dataset string) ([]catalog.SavedChart, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+savedChartColumns+`
FROM saved_chart
WHERE dataset_name = $1
ORDER BY position ASC, created_at ASC`, dataset)
	if err != nil {
		return nil, fmt.Errorf("list saved charts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	charts := make([]catalog.SavedChart, 0)
	for rows.Next() {
		chart, err := scanSavedChart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saved chart row: %w", err)
		}
		charts = append(charts, chart)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved chart rows: %w", err)
	}
	return charts, nil
}

// SwapSavedChartPositions exchanges the positions of two charts in one
// statement.
func (r *Repository) SwapSavedChartPositions(ctx context.Context, firstID, secondID string) error {
	query := `
UPDATE saved_chart AS target
SET position = source.position
FROM saved_chart AS source
WHERE (target.chart_id = $1 AND source.chart_id = $2)
   OR (target.chart_id = $2 AND source.chart_id = $1)`

	result, err := r.db.ExecContext(ctx, query, firstID, secondID)
	if err != nil {
		return fmt.Errorf("swap saved chart positions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("swap saved chart rows affected: %w", err)
	}
	if affected != 2 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteSavedChart(ctx context.Context, chartID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM saved_chart WHERE chart_id = $1`, chartID)
	if err != nil {
		return false, fmt.Errorf("delete saved chart: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete saved chart rows affected: %w", err)
	}
	return affected > 0, nil
}
