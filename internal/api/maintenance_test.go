package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sheetsense/sheetsense/internal/auth"
	"github.com/sheetsense/sheetsense/internal/maintenance"
)

type fakeMaintenance struct {
	summary maintenance.IntegritySummary
	err     error
	calls   int
}

func (f *fakeMaintenance) RunIntegrityCheckOnce(context.Context) (maintenance.IntegritySummary, error) {
	f.calls++
	return f.summary, f.err
}

func TestIntegrityRunCompleted(t *testing.T) {
	fake := &fakeMaintenance{summary: maintenance.IntegritySummary{DatasetsScanned: 4}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Maintenance: fake})

	rr := postJSON(t, h, "/v1/maintenance/integrity", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["status"] != "completed" {
		t.Fatalf("status = %v", body["status"])
	}
	summary, _ := body["summary"].(map[string]any)
	if summary["datasets_scanned"] != float64(4) {
		t.Fatalf("summary = %v", summary)
	}
}

func TestIntegrityRunReportsIssues(t *testing.T) {
	fake := &fakeMaintenance{
		summary: maintenance.IntegritySummary{DatasetsScanned: 2, MissingSnapshots: 1},
		err:     errors.New("integrity check found 1 issue(s): dataset a.csv missing snapshot"),
	}
	h := NewHandler(loadConfig(t, nil), Dependencies{Maintenance: fake})

	rr := postJSON(t, h, "/v1/maintenance/integrity", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "INTEGRITY_CHECK_FAILED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	ctx, _ := body["context"].(map[string]any)
	summary, _ := ctx["summary"].(map[string]any)
	if summary["missing_snapshots"] != float64(1) {
		t.Fatalf("context = %v", ctx)
	}
}

func TestIntegrityRunRequiresEditor(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"SHEETSENSE_AUTH_REQUIRED":    "true",
		"SHEETSENSE_AUTH_STATIC_KEYS": "k1:ops:viewer",
	})
	validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	fake := &fakeMaintenance{}
	h := NewHandler(cfg, Dependencies{AuthMiddleware: auth.Middleware(nil, validator), Maintenance: fake})

	req := httptest.NewRequest(http.MethodPost, "/v1/maintenance/integrity", nil)
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if fake.calls != 0 {
		t.Fatalf("integrity check ran %d time(s) for a viewer", fake.calls)
	}
}

func TestIntegrityRunNotConfigured(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := postJSON(t, h, "/v1/maintenance/integrity", nil)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
}
