package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/sheetsense/sheetsense/internal/catalog"
	"github.com/sheetsense/sheetsense/internal/dataop"
	"github.com/sheetsense/sheetsense/internal/llm"
	"github.com/sheetsense/sheetsense/internal/table"
	"github.com/sheetsense/sheetsense/internal/translate"
)

type memoryCatalog struct {
	charts map[string]catalog.SavedChart
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{charts: map[string]catalog.SavedChart{}}
}

func (m *memoryCatalog) CreateSavedChart(_ context.Context, in catalog.CreateSavedChartInput) (catalog.SavedChart, error) {
	position := 0
	for _, c := range m.charts {
		if c.Dataset == in.Dataset && c.Position > position {
			position = c.Position
		}
	}
	chart := catalog.SavedChart{ChartID: in.ChartID, Dataset: in.Dataset, Query: in.Query, SpecJSON: in.SpecJSON, Position: position + 1, CreatedAt: time.Now()}
	m.charts[in.ChartID] = chart
	return chart, nil
}

func (m *memoryCatalog) GetSavedChart(_ context.Context, id string) (catalog.SavedChart, error) {
	c, ok := m.charts[id]
	if !ok {
		return catalog.SavedChart{}, catalog.ErrNotFound
	}
	return c, nil
}

func (m *memoryCatalog) ListSavedCharts(_ context.Context, dataset string) ([]catalog.SavedChart, error) {
	var out []catalog.SavedChart
	for _, c := range m.charts {
		if c.Dataset == dataset {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memoryCatalog) SwapSavedChartPositions(_ context.Context, a, b string) error {
	first, ok1 := m.charts[a]
	second, ok2 := m.charts[b]
	if !ok1 || !ok2 {
		return catalog.ErrNotFound
	}
	first.Position, second.Position = second.Position, first.Position
	m.charts[a], m.charts[b] = first, second
	return nil
}

func (m *memoryCatalog) DeleteSavedChart(_ context.Context, id string) (bool, error) {
	_, ok := m.charts[id]
	delete(m.charts, id)
	return ok, nil
}

type staticTables struct{ t *table.Table }

func (s staticTables) Load(_ context.Context, name string) (*table.Table, error) {
	if name != s.t.Name() {
		return nil, fmt.Errorf("unknown dataset %q", name)
	}
	return s.t, nil
}

type fakeCharts struct {
	specs []dataop.ChartSpec
	err   error
}

func (f fakeCharts) Charts(context.Context, translate.Query) ([]dataop.ChartSpec, error) {
	return f.specs, f.err
}

type recordingCharts struct {
	queries []translate.Query
}

func (r *recordingCharts) Charts(_ context.Context, q translate.Query) ([]dataop.ChartSpec, error) {
	r.queries = append(r.queries, q)
	return twoSpecs[1:], nil
}

func newService(t *testing.T, specs []dataop.ChartSpec, err error) (*Service, *memoryCatalog) {
	t.Helper()
	tbl, tableErr := table.New("vendors.xlsx", []string{"Status", "Country"}, [][]string{
		{"Open", "DE"}, {"Closed", "FR"}, {"Open", "DE"},
	})
	if tableErr != nil {
		t.Fatalf("table.New() error = %v", tableErr)
	}
	repo := newMemoryCatalog()
	svc := New(repo, staticTables{t: tbl}, fakeCharts{specs: specs, err: err}, 0, nil)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("chart-%d", n)
	}
	return svc, repo
}

var twoSpecs = []dataop.ChartSpec{
	{XCol: "Status", Aggregation: dataop.AggregationCount, GraphType: dataop.GraphPie, Title: "Status Distribution"},
	{XCol: "Country", Aggregation: dataop.AggregationCount, GraphType: dataop.GraphBar, Title: "Country Distribution"},
}

func TestAddPinsEverySpec(t *testing.T) {
	svc, repo := newService(t, twoSpecs, nil)
	entries, err := svc.Add(context.Background(), "vendors.xlsx", "status and country")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(entries) != 2 || len(repo.charts) != 2 {
		t.Fatalf("Add() entries = %d, stored = %d", len(entries), len(repo.charts))
	}
	if entries[0].Position != 1 || entries[1].Position != 2 {
		t.Fatalf("positions = %d, %d", entries[0].Position, entries[1].Position)
	}
	if entries[0].Chart.X[0] != "Open" || entries[0].Chart.Y[0] != 2 {
		t.Fatalf("first chart = %+v", entries[0].Chart)
	}
}

func TestAddWithoutChartsFails(t *testing.T) {
	svc, _ := newService(t, nil, nil)
	if _, err := svc.Add(context.Background(), "vendors.xlsx", "something"); !errors.Is(err, ErrNoCharts) {
		t.Fatalf("Add() error = %v, want ErrNoCharts", err)
	}
	svc, _ = newService(t, nil, llm.ErrBackendUnavailable)
	if _, err := svc.Add(context.Background(), "vendors.xlsx", "something"); !errors.Is(err, llm.ErrBackendUnavailable) {
		t.Fatalf("Add() error = %v, want ErrBackendUnavailable", err)
	}
}

func TestListRendersAgainstCurrentTable(t *testing.T) {
	svc, repo := newService(t, twoSpecs, nil)
	if _, err := svc.Add(context.Background(), "vendors.xlsx", "q"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	repo.charts["chart-9"] = catalog.SavedChart{ChartID: "chart-9", Dataset: "vendors.xlsx", SpecJSON: []byte(`{"x_col":"Owner","aggregation":"count"}`), Position: 3}
	repo.charts["chart-10"] = catalog.SavedChart{ChartID: "chart-10", Dataset: "vendors.xlsx", SpecJSON: []byte(`not json`), Position: 4}

	entries, err := svc.List(context.Background(), "vendors.xlsx")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("List() = %d entries", len(entries))
	}
	if entries[1].Chart.X[0] != "DE" || entries[1].Chart.Error != "" {
		t.Fatalf("second entry = %+v", entries[1])
	}
	if entries[2].Chart.Error == "" || entries[3].Chart.Error == "" {
		t.Fatalf("broken entries should carry errors: %+v %+v", entries[2].Chart, entries[3].Chart)
	}
}

func TestMoveSwapsNeighbours(t *testing.T) {
	svc, repo := newService(t, twoSpecs, nil)
	ctx := context.Background()
	if _, err := svc.Add(ctx, "vendors.xlsx", "q"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := svc.Move(ctx, "chart-2", Up); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if repo.charts["chart-2"].Position != 1 || repo.charts["chart-1"].Position != 2 {
		t.Fatalf("positions after move = %d, %d", repo.charts["chart-1"].Position, repo.charts["chart-2"].Position)
	}
	if err := svc.Move(ctx, "chart-2", Up); err != nil {
		t.Fatalf("Move() at top error = %v", err)
	}
	if repo.charts["chart-2"].Position != 1 {
		t.Fatal("moving the first chart up should be a no-op")
	}
	if err := svc.Move(ctx, "missing", Down); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Move() error = %v, want ErrNotFound", err)
	}
	if err := svc.Move(ctx, "chart-1", Direction("sideways")); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("Move() error = %v, want ErrInvalidDirection", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t, twoSpecs, nil)
	ctx := context.Background()
	if _, err := svc.Add(ctx, "vendors.xlsx", "q"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := svc.Delete(ctx, "chart-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, "chart-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection(" UP "); err != nil || d != Up {
		t.Fatalf("ParseDirection() = %q, %v", d, err)
	}
	if _, err := ParseDirection("left"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("ParseDirection() error = %v", err)
	}
}

func TestAddUsesConfiguredSampleValues(t *testing.T) {
	tbl, err := table.New("vendors.xlsx", []string{"Country"}, [][]string{
		{"DE"}, {"FR"}, {"IT"}, {"ES"}, {"NL"},
	})
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}
	for _, tc := range []struct {
		configured int
		want       int
	}{
		{configured: 1, want: 1},
		{configured: 4, want: 4},
		{configured: 0, want: translate.DefaultSampleValues},
	} {
		charts := &recordingCharts{}
		svc := New(newMemoryCatalog(), staticTables{t: tbl}, charts, tc.configured, nil)
		if _, err := svc.Add(context.Background(), "vendors.xlsx", "country"); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if len(charts.queries) != 1 {
			t.Fatalf("Charts() calls = %d, want 1", len(charts.queries))
		}
		if got := len(charts.queries[0].Samples["Country"]); got != tc.want {
			t.Fatalf("sampleValues %d: Country samples = %d, want %d", tc.configured, got, tc.want)
		}
	}
}
