package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sheetsense/sheetsense/internal/auth"
	"github.com/sheetsense/sheetsense/internal/catalog"
	"github.com/sheetsense/sheetsense/internal/config"
	"github.com/sheetsense/sheetsense/internal/dataset"
	"github.com/sheetsense/sheetsense/internal/risk"
)

// multipartMemory is the part of an upload kept in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

func handleUploadDataset(deps Dependencies, cfg config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASETS_NOT_CONFIGURED", "dataset store is not configured", false, nil)
		return
	}
	if !authorize(w, r, auth.RoleEditor) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, cfg.Dataset.UploadMaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "upload exceeds the configured size limit", false, map[string]any{"limit_bytes": tooLarge.Limit})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_UPLOAD", "request must be multipart/form-data", false, map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_UPLOAD", "form field \"file\" is required", false, nil)
		return
	}
	defer func() { _ = file.Close() }()

	filename := filepath.Base(header.Filename)
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = filename
	}
	if err := dataset.ValidateName(name); err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	format, err := dataset.FormatOf(filename)
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	t, err := dataset.Parse(filename, file)
	if err != nil {
		if errors.Is(err, dataset.ErrUnsupportedFormat) || errors.Is(err, dataset.ErrEmptySheet) {
			writeDomainError(deps, w, r, err)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SPREADSHEET", "file could not be read as a spreadsheet", false, map[string]any{"details": err.Error()})
		return
	}
	if cfg.Dataset.ClassifyRisk {
		classified, _, err := risk.Classify(t)
		if err != nil {
			writeDomainError(deps, w, r, err)
			return
		}
		t = classified
	}

	record, err := deps.Datasets.Save(r.Context(), dataset.SaveInput{
		Name:     name,
		Filename: filename,
		Format:   format,
		Table:    t,
	})
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}

	summary := map[string]any{
		"columns":    record.Columns,
		"rows_count": record.RowCount,
	}
	if counts, ok := risk.Summary(t); ok {
		levels := make(map[string]int, len(counts))
		for level, n := range counts {
			levels[string(level)] = n
		}
		summary["risk_levels"] = levels
	}
	if kpis, ok := risk.Indicators(t); ok {
		summary["kpis"] = kpis
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"filename": record.Name,
		"message":  "File uploaded successfully",
		"summary":  summary,
	})
}

func handleListDatasets(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASETS_NOT_CONFIGURED", "dataset store is not configured", false, nil)
		return
	}
	if !authorize(w, r, auth.RoleViewer) {
		return
	}
	records, err := deps.Datasets.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CATALOG_ERROR", "failed to list datasets", true, map[string]any{"details": err.Error()})
		return
	}
	items := make([]map[string]any, 0, len(records))
	for _, record := range records {
		items = append(items, datasetJSON(record))
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": items})
}

func handleGetDataset(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASETS_NOT_CONFIGURED", "dataset store is not configured", false, nil)
		return
	}
	if !authorize(w, r, auth.RoleViewer) {
		return
	}
	record, err := deps.Datasets.Info(r.Context(), r.PathValue("name"))
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetJSON(record))
}

func handleDeleteDataset(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASETS_NOT_CONFIGURED", "dataset store is not configured", false, nil)
		return
	}
	if !authorize(w, r, auth.RoleEditor) {
		return
	}
	name := r.PathValue("name")
	if err := deps.Datasets.Delete(r.Context(), name); err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "filename": name})
}

// handleDatasetRows backs chart drill-down: the rows whose column equals
// value exactly.
func handleDatasetRows(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}
	if !authorize(w, r, auth.RoleViewer) {
		return
	}
	name := r.PathValue("name")
	column := r.URL.Query().Get("column")
	value := r.URL.Query().Get("value")
	if !requiredText(w, r, "column", column) {
		return
	}
	rows, err := deps.Assistant.Drilldown(r.Context(), name, column, value)
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":   name,
		"column":     column,
		"value":      value,
		"columns":    rows.Columns(),
		"rows":       rows.Records(),
		"rows_count": rows.Len(),
	})
}

func datasetJSON(record catalog.Dataset) map[string]any {
	return map[string]any{
		"filename":      record.Name,
		"dataset_id":    record.DatasetID,
		"original_name": record.Filename,
		"format":        record.Format,
		"columns":       record.Columns,
		"rows_count":    record.RowCount,
		"size_bytes":    record.SizeBytes,
		"created_at":    record.CreatedAt,
		"uploaded_at":   record.UploadedAt,
	}
}
