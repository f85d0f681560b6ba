package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sheetsense/sheetsense/internal/assistant"
	"github.com/sheetsense/sheetsense/internal/dashboard"
)

func TestDashboardAddAndList(t *testing.T) {
	fake := &fakeDashboard{entries: []dashboard.Entry{{
		ID:       "c1",
		Dataset:  "staff.xlsx",
		Query:    "bar chart of departments",
		Position: 1,
		Chart:    assistant.Chart{X: []string{"IT"}, Y: []float64{2}, XLabel: "Department", YLabel: "count"},
	}}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Dashboard: fake})

	rr := postJSON(t, h, "/v1/dashboard/charts", map[string]any{"filename": "staff.xlsx", "query": "bar chart of departments"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/dashboard/charts?dataset=staff.xlsx", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	charts := decodeBody(t, rr)["charts"].([]any)
	if len(charts) != 1 || charts[0].(map[string]any)["id"] != "c1" {
		t.Fatalf("charts = %#v", charts)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/dashboard/charts", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("list without dataset status = %d", rr.Code)
	}
}

func TestDashboardAddWithoutCharts(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Dashboard: &fakeDashboard{err: dashboard.ErrNoCharts}})
	rr := postJSON(t, h, "/v1/dashboard/charts", map[string]any{"filename": "staff.xlsx", "query": "hello"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestDashboardMove(t *testing.T) {
	fake := &fakeDashboard{}
	h := NewHandler(loadConfig(t, nil), Dependencies{Dashboard: fake})

	rr := postJSON(t, h, "/v1/dashboard/charts/c1/move", map[string]any{"direction": "Up"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if fake.moved != dashboard.Up {
		t.Fatalf("moved = %q", fake.moved)
	}

	rr = postJSON(t, h, "/v1/dashboard/charts/c1/move", map[string]any{"direction": "sideways"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid direction status = %d", rr.Code)
	}
}

func TestDashboardDeleteNotFound(t *testing.T) {
	fake := &fakeDashboard{err: fmt.Errorf("%w: %q", dashboard.ErrNotFound, "c9")}
	h := NewHandler(loadConfig(t, nil), Dependencies{Dashboard: fake})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/dashboard/charts/c9", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if fake.deletedID != "c9" {
		t.Fatalf("deletedID = %q", fake.deletedID)
	}
}
