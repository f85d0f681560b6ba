package dataset

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sheetsense/sheetsense/internal/catalog"
	"github.com/sheetsense/sheetsense/internal/query"
	"github.com/sheetsense/sheetsense/internal/storage"
	"github.com/sheetsense/sheetsense/internal/storage/localfs"
	"github.com/sheetsense/sheetsense/internal/table"
)

type fakeCatalog struct {
	mu       sync.Mutex
	datasets map[string]catalog.Dataset
	gets     int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{datasets: map[string]catalog.Dataset{}}
}

func (f *fakeCatalog) UpsertDataset(_ context.Context, in catalog.UpsertDatasetInput) (catalog.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	record := catalog.Dataset{
		DatasetID:  in.DatasetID,
		Name:       in.Name,
		Filename:   in.Filename,
		ObjectKey:  in.ObjectKey,
		Format:     in.Format,
		Columns:    in.Columns,
		RowCount:   in.RowCount,
		SizeBytes:  in.SizeBytes,
		CreatedAt:  now,
		UploadedAt: now,
	}
	f.datasets[in.Name] = record
	return record, nil
}

func (f *fakeCatalog) GetDataset(_ context.Context, name string) (catalog.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	record, ok := f.datasets[name]
	if !ok {
		return catalog.Dataset{}, catalog.ErrNotFound
	}
	return record, nil
}

func (f *fakeCatalog) ListDatasets(context.Context) ([]catalog.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalog.Dataset, 0, len(f.datasets))
	for _, record := range f.datasets {
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeCatalog) DeleteDataset(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.datasets[name]
	delete(f.datasets, name)
	return ok, nil
}

func newTestStore(t *testing.T, engine query.Engine, cacheSize int) (*Store, *fakeCatalog, *localfs.Store) {
	t.Helper()
	objects, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	repo := newFakeCatalog()
	store, err := NewStore(objects, repo, engine, cacheSize, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ids := []string{"id-1", "id-2", "id-3"}
	store.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	return store, repo, objects
}

func vendorTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New("vendors.xlsx", []string{"Vendor", "Status", "Cost"}, [][]string{
		{"Acme", "Open", "10"},
		{"Beta", "", "5.5"},
		{"Gamma", "Closed", ""},
	})
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}
	return tbl
}

func TestSaveThenLoadRoundTripsThroughSnapshot(t *testing.T) {
	store, repo, objects := newTestStore(t, nil, 0)
	ctx := context.Background()

	record, err := store.Save(ctx, SaveInput{Name: "vendors.xlsx", Filename: "vendors.xlsx", Format: FormatXLSX, Table: vendorTable(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if record.ObjectKey != "datasets/vendors-xlsx/id-1.parquet" || record.RowCount != 3 {
		t.Fatalf("Save() = %+v", record)
	}
	if _, err := objects.Stat(ctx, record.ObjectKey); err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	loaded, err := store.Load(ctx, "vendors.xlsx")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded.Columns(), []string{"Vendor", "Status", "Cost"}) {
		t.Fatalf("Columns() = %#v", loaded.Columns())
	}
	if !reflect.DeepEqual(loaded.Row(1), []string{"Beta", "", "5.5"}) {
		t.Fatalf("Row(1) = %#v", loaded.Row(1))
	}
	if repo.gets != 2 {
		t.Fatalf("catalog lookups = %d, want 2 without a cache", repo.gets)
	}
}

func TestLoadUsesCache(t *testing.T) {
	store, _, objects := newTestStore(t, nil, 4)
	ctx := context.Background()
	record, err := store.Save(ctx, SaveInput{Name: "vendors.xlsx", Format: FormatXLSX, Table: vendorTable(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Without the cache, Load would now fail reading the snapshot.
	if err := objects.Delete(ctx, record.ObjectKey); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		loaded, err := store.Load(ctx, "vendors.xlsx")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded.Len() != 3 {
			t.Fatalf("Load() rows = %d", loaded.Len())
		}
	}
}

func TestLoadDropsCachedTableAfterReuploadElsewhere(t *testing.T) {
	writer, repo, objects := newTestStore(t, nil, 4)
	reader, err := NewStore(objects, repo, nil, 4, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	v1, err := table.New("risks.csv", []string{"Status"}, [][]string{{"Open"}})
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}
	if _, err := writer.Save(ctx, SaveInput{Name: "risks.csv", Table: v1}); err != nil {
		t.Fatalf("Save(v1) error = %v", err)
	}
	if got, err := reader.Load(ctx, "risks.csv"); err != nil || got.Len() != 1 {
		t.Fatalf("Load(v1) = %v, %v", got, err)
	}

	v2, err := table.New("risks.csv", []string{"Status", "Owner"}, [][]string{{"Open", "Ana"}, {"Closed", "Bo"}})
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}
	if _, err := writer.Save(ctx, SaveInput{Name: "risks.csv", Table: v2}); err != nil {
		t.Fatalf("Save(v2) error = %v", err)
	}

	got, err := reader.Load(ctx, "risks.csv")
	if err != nil {
		t.Fatalf("Load(v2) error = %v", err)
	}
	if !reflect.DeepEqual(got.Columns(), []string{"Status", "Owner"}) || got.Len() != 2 {
		t.Fatalf("Load(v2) columns = %v rows = %d", got.Columns(), got.Len())
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	store, _, objects := newTestStore(t, nil, 4)
	ctx := context.Background()
	first, err := store.Save(ctx, SaveInput{Name: "vendors.xlsx", Table: vendorTable(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	replacement, err := table.New("vendors.xlsx", []string{"Vendor"}, [][]string{{"Delta"}})
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}
	second, err := store.Save(ctx, SaveInput{Name: "vendors.xlsx", Table: replacement})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if second.ObjectKey == first.ObjectKey {
		t.Fatalf("ObjectKey not rotated: %q", second.ObjectKey)
	}
	if _, err := objects.Stat(ctx, first.ObjectKey); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat(old) error = %v, want ErrObjectNotFound", err)
	}
	loaded, err := store.Load(ctx, "vendors.xlsx")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 1 || loaded.Cell(0, 0) != "Delta" {
		t.Fatalf("Load() returned stale table with %d rows", loaded.Len())
	}
}

func TestDeleteRemovesRecordAndObject(t *testing.T) {
	store, _, objects := newTestStore(t, nil, 4)
	ctx := context.Background()
	record, err := store.Save(ctx, SaveInput{Name: "vendors.xlsx", Table: vendorTable(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "vendors.xlsx"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "vendors.xlsx"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
	if _, err := objects.Stat(ctx, record.ObjectKey); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}
	if err := store.Delete(ctx, "vendors.xlsx"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
}

type fakeEngine struct {
	requests []query.Request
	result   query.Result
}

func (f *fakeEngine) Execute(_ context.Context, request query.Request) (query.Result, error) {
	f.requests = append(f.requests, request)
	return f.result, nil
}

func TestLoadReadsThroughQueryEngine(t *testing.T) {
	engine := &fakeEngine{result: query.Result{
		Columns: []string{"row_index", "cells"},
		Rows: [][]any{
			{int64(0), []any{"Acme", "Open", nil}},
			{int64(1), []any{"Beta"}},
		},
	}}
	store, repo, _ := newTestStore(t, engine, 0)
	ctx := context.Background()
	repo.datasets["vendors.xlsx"] = catalog.Dataset{
		Name:      "vendors.xlsx",
		ObjectKey: "datasets/vendors-xlsx/x.parquet",
		Columns:   []string{"Vendor", "Status", "Cost"},
	}

	loaded, err := store.Load(ctx, "vendors.xlsx")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 2 || !reflect.DeepEqual(loaded.Row(1), []string{"Beta", "", ""}) {
		t.Fatalf("Load() rows = %d, Row(1) = %#v", loaded.Len(), loaded.Row(1))
	}
	if len(engine.requests) != 1 {
		t.Fatalf("engine requests = %d", len(engine.requests))
	}
	source := engine.requests[0].Sources[0]
	if source.View != "snapshot" || source.ObjectKey != "datasets/vendors-xlsx/x.parquet" {
		t.Fatalf("source = %+v", source)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"vendors.xlsx", "Q3 report.csv", "données.csv"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Fatalf("ValidateName(%q) error = %v", name, err)
		}
	}
	invalid := []string{"", " padded.csv", "../etc/passwd", `a\b.csv`, "..", "tab\tname.csv", "---"}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("ValidateName(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}
