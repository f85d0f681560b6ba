package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/sheetsense/sheetsense/internal/query"
	"github.com/sheetsense/sheetsense/internal/storage"
)

var (
	ErrEmptySQL     = errors.New("sql is required")
	ErrNoSources    = errors.New("at least one source is required")
	ErrMissingStore = errors.New("object store is required")
)

// Engine downloads each source into a scratch directory and queries it
// with an in-memory DuckDB instance. Nothing is shared between requests.
type Engine struct {
	store storage.ObjectStore
}

func NewEngine(store storage.ObjectStore) *Engine {
	return &Engine{store: store}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := trimStatement(request.SQL)
	if sqlText == "" {
		return query.Result{}, ErrEmptySQL
	}
	if len(request.Sources) == 0 {
		return query.Result{}, ErrNoSources
	}
	if e.store == nil {
		return query.Result{}, ErrMissingStore
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "sheetsense-query-")
	if err != nil {
		return query.Result{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	views := make(map[string][]string, len(request.Sources))
	var scanned int64
	for i, source := range request.Sources {
		if strings.TrimSpace(source.View) == "" {
			return query.Result{}, fmt.Errorf("source %d has no view name", i)
		}
		localPath := filepath.Join(workDir, fmt.Sprintf("source_%d.parquet", i))
		n, err := e.download(ctx, source.ObjectKey, localPath)
		if err != nil {
			return query.Result{}, err
		}
		scanned += n
		views[source.View] = append(views[source.View], localPath)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	for view, paths := range views {
		stmt := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(view), quoteStringList(paths))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return query.Result{}, fmt.Errorf("create view %q: %w", view, err)
		}
	}

	if request.RowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}
	columns, rows, err := collect(ctx, db, sqlText)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{
		Columns:      columns,
		Rows:         rows,
		ScannedBytes: scanned,
		Duration:     time.Since(start),
	}, nil
}

func (e *Engine) download(ctx context.Context, key, localPath string) (int64, error) {
	reader, err := e.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("create local copy of %q: %w", key, err)
	}
	n, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("copy object %q: %w", key, err)
	}
	return n, nil
}

func collect(ctx context.Context, db *sql.DB, sqlText string) ([]string, [][]any, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	out := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		for i, value := range values {
			if b, ok := value.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, out, nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringList(values []string) string {
	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func trimStatement(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
