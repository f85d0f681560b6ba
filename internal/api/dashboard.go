package api

import (
	"net/http"

	"github.com/sheetsense/sheetsense/internal/auth"
	"github.com/sheetsense/sheetsense/internal/config"
	"github.com/sheetsense/sheetsense/internal/dashboard"
)

type moveRequest struct {
	Direction string `json:"direction"`
}

func handleListDashboard(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if !dashboardReady(deps, w, r, auth.RoleViewer) {
		return
	}
	name := r.URL.Query().Get("dataset")
	if !requiredText(w, r, "dataset", name) {
		return
	}
	entries, err := deps.Dashboard.List(r.Context(), name)
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dataset": name, "charts": entries})
}

func handleAddDashboardChart(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if !dashboardReady(deps, w, r, auth.RoleEditor) {
		return
	}
	var req questionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requiredText(w, r, "filename", req.Filename) || !requiredText(w, r, "query", req.Query) {
		return
	}
	entries, err := deps.Dashboard.Add(r.Context(), req.Filename, req.Query)
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"dataset": req.Filename, "charts": entries})
}

func handleDeleteDashboardChart(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if !dashboardReady(deps, w, r, auth.RoleEditor) {
		return
	}
	chartID := r.PathValue("id")
	if err := deps.Dashboard.Delete(r.Context(), chartID); err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": chartID})
}

func handleMoveDashboardChart(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if !dashboardReady(deps, w, r, auth.RoleEditor) {
		return
	}
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	direction, err := dashboard.ParseDirection(req.Direction)
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	chartID := r.PathValue("id")
	if err := deps.Dashboard.Move(r.Context(), chartID, direction); err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "moved", "id": chartID, "direction": direction})
}

func dashboardReady(deps Dependencies, w http.ResponseWriter, r *http.Request, role string) bool {
	if deps.Dashboard == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DASHBOARD_NOT_CONFIGURED", "dashboard is not configured", false, nil)
		return false
	}
	return authorize(w, r, role)
}
