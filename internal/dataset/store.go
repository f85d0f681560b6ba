package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sheetsense/sheetsense/internal/catalog"
	"github.com/sheetsense/sheetsense/internal/observability"
	"github.com/sheetsense/sheetsense/internal/query"
	"github.com/sheetsense/sheetsense/internal/storage"
	"github.com/sheetsense/sheetsense/internal/table"
)

var (
	ErrNotFound    = errors.New("dataset not found")
	ErrInvalidName = errors.New("invalid dataset name")
)

const maxNameLength = 255

// Catalog is the part of the catalog repository datasets need.
type Catalog interface {
	UpsertDataset(ctx context.Context, in catalog.UpsertDatasetInput) (catalog.Dataset, error)
	GetDataset(ctx context.Context, name string) (catalog.Dataset, error)
	ListDatasets(ctx context.Context) ([]catalog.Dataset, error)
	DeleteDataset(ctx context.Context, name string) (bool, error)
}

type Store struct {
	objects storage.ObjectStore
	catalog Catalog
	engine  query.Engine
	// cache is keyed by catalog DatasetID, not by name.
	cache  *lru.Cache[string, *table.Table]
	logger *slog.Logger
	newID  func() string
}

// NewStore wires the snapshot store. A nil engine makes Load decode
// snapshots in process instead of through DuckDB; cacheSize <= 0 disables
// the table cache.
func NewStore(objects storage.ObjectStore, repo Catalog, engine query.Engine, cacheSize int, logger *slog.Logger) (*Store, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{
		objects: objects,
		catalog: repo,
		engine:  engine,
		logger:  logger,
		newID:   uuid.NewString,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, *table.Table](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create dataset cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// ValidateName accepts file-like names without path components or control
// characters.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	case trimmed != name:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidName, name)
	case len(name) > maxNameLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLength)
	case name == "." || name == ".." || strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path", ErrInvalidName, name)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: %q contains control characters", ErrInvalidName, name)
	case storage.Slug(name) == "":
		return fmt.Errorf("%w: %q has no letters or digits", ErrInvalidName, name)
	}
	return nil
}

type SaveInput struct {
	Name     string
	Filename string
	Format   string
	Table    *table.Table
}

// Save stores a new snapshot and points the catalog record at it. The
// previous snapshot of the same name is removed afterwards.
func (s *Store) Save(ctx context.Context, in SaveInput) (catalog.Dataset, error) {
	if err := ValidateName(in.Name); err != nil {
		return catalog.Dataset{}, err
	}
	if in.Table == nil {
		return catalog.Dataset{}, fmt.Errorf("table is required")
	}

	var previousKey, previousID string
	previous, err := s.catalog.GetDataset(ctx, in.Name)
	switch {
	case err == nil:
		previousKey, previousID = previous.ObjectKey, previous.DatasetID
	case !errors.Is(err, catalog.ErrNotFound):
		return catalog.Dataset{}, fmt.Errorf("look up dataset %q: %w", in.Name, err)
	}

	id := s.newID()
	key, err := storage.DatasetSnapshotKey(in.Name, id)
	if err != nil {
		return catalog.Dataset{}, err
	}
	data, err := encodeSnapshot(in.Table)
	if err != nil {
		return catalog.Dataset{}, fmt.Errorf("encode dataset %q: %w", in.Name, err)
	}
	if _, err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: snapshotContentType}); err != nil {
		return catalog.Dataset{}, fmt.Errorf("put snapshot %q: %w", key, err)
	}

	record, err := s.catalog.UpsertDataset(ctx, catalog.UpsertDatasetInput{
		DatasetID: id,
		Name:      in.Name,
		Filename:  in.Filename,
		ObjectKey: key,
		Format:    in.Format,
		Columns:   in.Table.Columns(),
		RowCount:  int64(in.Table.Len()),
		SizeBytes: int64(len(data)),
	})
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "orphaned dataset snapshot", slog.String("object_key", key), slog.Any("error", delErr))
		}
		return catalog.Dataset{}, fmt.Errorf("record dataset %q: %w", in.Name, err)
	}

	if previousKey != "" && previousKey != key {
		s.removeObject(ctx, previousKey)
	}
	if s.cache != nil {
		if previousID != "" {
			s.cache.Remove(previousID)
		}
		s.cache.Add(id, in.Table)
	}
	observability.ObserveDatasetUpload(in.Table.Len())
	s.logger.InfoContext(ctx, "dataset stored",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("dataset", in.Name),
		slog.String("dataset_id", id),
		slog.Int("rows", in.Table.Len()),
		slog.Int("columns", len(record.Columns)),
	)
	return record, nil
}

// Load returns the current table of a dataset. The catalog record is
// always read; the snapshot only when the cache has no table for its
// DatasetID.
func (s *Store) Load(ctx context.Context, name string) (*table.Table, error) {
	record, err := s.Info(ctx, name)
	if err != nil {
		return nil, err
	}
	cacheable := s.cache != nil && record.DatasetID != ""
	if cacheable {
		if t, ok := s.cache.Get(record.DatasetID); ok {
			return t, nil
		}
	}

	rows, err := s.readSnapshot(ctx, record.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read dataset %q: %w", name, err)
	}
	t, err := table.New(name, record.Columns, rows)
	if err != nil {
		return nil, fmt.Errorf("rebuild dataset %q: %w", name, err)
	}
	if cacheable {
		s.cache.Add(record.DatasetID, t)
	}
	return t, nil
}

// Info returns the catalog record of a dataset.
func (s *Store) Info(ctx context.Context, name string) (catalog.Dataset, error) {
	record, err := s.catalog.GetDataset(ctx, name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Dataset{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return catalog.Dataset{}, fmt.Errorf("look up dataset %q: %w", name, err)
	}
	return record, nil
}

func (s *Store) List(ctx context.Context) ([]catalog.Dataset, error) {
	return s.catalog.ListDatasets(ctx)
}

// Delete removes the catalog record, its saved charts and the snapshot.
func (s *Store) Delete(ctx context.Context, name string) error {
	record, err := s.Info(ctx, name)
	if err != nil {
		return err
	}
	deleted, err := s.catalog.DeleteDataset(ctx, name)
	if err != nil {
		return fmt.Errorf("delete dataset %q: %w", name, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if s.cache != nil {
		s.cache.Remove(record.DatasetID)
	}
	s.removeObject(ctx, record.ObjectKey)
	return nil
}

func (s *Store) removeObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.WarnContext(ctx, "delete dataset snapshot failed", slog.String("object_key", key), slog.Any("error", err))
	}
}

func (s *Store) readSnapshot(ctx context.Context, key string) ([][]string, error) {
	if s.engine == nil {
		reader, err := s.objects.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get snapshot %q: %w", key, err)
		}
		defer func() { _ = reader.Close() }()
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read snapshot %q: %w", key, err)
		}
		return decodeSnapshot(data)
	}

	result, err := s.engine.Execute(ctx, query.Request{
		SQL:     snapshotSQL,
		Sources: []query.Source{{View: "snapshot", ObjectKey: key}},
	})
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("snapshot row %d has %d columns, want 2", i, len(row))
		}
		cells, err := cellsFromValue(row[1])
		if err != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", i, err)
		}
		rows[i] = cells
	}
	return rows, nil
}
