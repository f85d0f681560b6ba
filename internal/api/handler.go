package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sheetsense/sheetsense/internal/assistant"
	"github.com/sheetsense/sheetsense/internal/auth"
	"github.com/sheetsense/sheetsense/internal/catalog"
	"github.com/sheetsense/sheetsense/internal/config"
	"github.com/sheetsense/sheetsense/internal/dashboard"
	"github.com/sheetsense/sheetsense/internal/dataop"
	"github.com/sheetsense/sheetsense/internal/dataset"
	"github.com/sheetsense/sheetsense/internal/llm"
	"github.com/sheetsense/sheetsense/internal/maintenance"
	"github.com/sheetsense/sheetsense/internal/observability"
	"github.com/sheetsense/sheetsense/internal/storage"
	"github.com/sheetsense/sheetsense/internal/table"
)

const maxJSONBodyBytes = 1 << 20

type ReadinessCheck func(ctx context.Context) error

type DatasetStore interface {
	Save(ctx context.Context, in dataset.SaveInput) (catalog.Dataset, error)
	Info(ctx context.Context, name string) (catalog.Dataset, error)
	List(ctx context.Context) ([]catalog.Dataset, error)
	Delete(ctx context.Context, name string) error
}

type Assistant interface {
	Ask(ctx context.Context, dataset, question string) (assistant.Answer, error)
	Charts(ctx context.Context, dataset, question string) (assistant.ChartsResponse, error)
	Chat(ctx context.Context, dataset, message string) (assistant.Reply, error)
	Drilldown(ctx context.Context, dataset, column, value string) (*table.Table, error)
}

type Dashboard interface {
	Add(ctx context.Context, dataset, question string) ([]dashboard.Entry, error)
	List(ctx context.Context, dataset string) ([]dashboard.Entry, error)
	Move(ctx context.Context, chartID string, direction dashboard.Direction) error
	Delete(ctx context.Context, chartID string) error
}

type BackendSelector interface {
	Select(ctx context.Context) (llm.Backend, error)
	RemoteConfigured() bool
}

type Maintenance interface {
	RunIntegrityCheckOnce(ctx context.Context) (maintenance.IntegritySummary, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Datasets          DatasetStore
	Assistant         Assistant
	Dashboard         Dashboard
	Backends          BackendSelector
	Maintenance       Maintenance
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), dependencyTimeout(deps))
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	routes := []struct {
		pattern string
		handler func(Dependencies, config.Config, http.ResponseWriter, *http.Request)
	}{
		{"GET /v1/backend", handleBackend},
		{"GET /v1/datasets", handleListDatasets},
		{"POST /v1/datasets", handleUploadDataset},
		{"GET /v1/datasets/{name}", handleGetDataset},
		{"DELETE /v1/datasets/{name}", handleDeleteDataset},
		{"GET /v1/datasets/{name}/rows", handleDatasetRows},
		{"POST /v1/query", handleQuery},
		{"POST /v1/charts", handleCharts},
		{"POST /v1/chat", handleChat},
		{"GET /v1/dashboard/charts", handleListDashboard},
		{"POST /v1/dashboard/charts", handleAddDashboardChart},
		{"DELETE /v1/dashboard/charts/{id}", handleDeleteDashboardChart},
		{"POST /v1/dashboard/charts/{id}/move", handleMoveDashboardChart},
		{"POST /v1/maintenance/integrity", handleIntegrityRun},
	}
	for _, route := range routes {
		h := route.handler
		protected.HandleFunc(route.pattern, func(w http.ResponseWriter, r *http.Request) {
			h(deps, cfg, w, r)
		})
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, route := range routes {
		mux.Handle(route.pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		CORSMiddleware,
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckCatalog pings the catalog database.
func CheckCatalog(repo interface{ HealthCheck(context.Context) error }) ReadinessCheck {
	if repo == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := repo.HealthCheck(ctx); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		return nil
	}
}

// CheckObjectStore verifies the bucket or upload directory when the store
// supports it.
func CheckObjectStore(store storage.ObjectStore) ReadinessCheck {
	checker, ok := store.(storage.HealthChecker)
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("object store: %w", err)
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func dependencyTimeout(deps Dependencies) time.Duration {
	if deps.DependencyTimeout <= 0 {
		return 2 * time.Second
	}
	return deps.DependencyTimeout
}

// requireRole is a no-op when the request carries no identity, which only
// happens with auth disabled.
func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	switch role {
	case auth.RoleViewer:
		if identity.CanRead() {
			return nil
		}
	default:
		if identity.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("missing required role %q", role)
}

func authorize(w http.ResponseWriter, r *http.Request, role string) bool {
	if err := requireRole(r, role); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON", false, map[string]any{"details": err.Error()})
		return false
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "request body must contain a single JSON object", false, nil)
		return false
	}
	return true
}

// writeDomainError maps errors from the dataset, assistant and dashboard
// services onto API errors.
func writeDomainError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	var unknownColumn *dataop.UnknownColumnError
	switch {
	case errors.Is(err, dataset.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "DATASET_NOT_FOUND", err.Error(), false, nil)
	case errors.Is(err, dashboard.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "CHART_NOT_FOUND", err.Error(), false, nil)
	case errors.Is(err, dataset.ErrInvalidName):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DATASET_NAME", err.Error(), false, nil)
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), false, nil)
	case errors.Is(err, dataset.ErrEmptySheet):
		writeError(r.Context(), w, http.StatusBadRequest, "EMPTY_SHEET", err.Error(), false, nil)
	case errors.Is(err, dashboard.ErrInvalidDirection):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DIRECTION", err.Error(), false, nil)
	case errors.Is(err, dashboard.ErrNoCharts):
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "NO_CHARTS", err.Error(), false, nil)
	case errors.As(err, &unknownColumn):
		writeError(r.Context(), w, http.StatusBadRequest, "UNKNOWN_COLUMN", err.Error(), false, map[string]any{"column": unknownColumn.Column})
	case errors.Is(err, llm.ErrBackendUnavailable):
		writeError(r.Context(), w, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", assistant.UserMessage(err), true, nil)
	case errors.Is(err, llm.ErrRateLimitExceeded):
		writeError(r.Context(), w, http.StatusTooManyRequests, "RATE_LIMITED", assistant.UserMessage(err), true, nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(r.Context(), w, http.StatusGatewayTimeout, "TIMEOUT", assistant.UserMessage(err), true, nil)
	default:
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "request failed",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "request failed", true, map[string]any{"details": err.Error()})
	}
}

func requiredText(w http.ResponseWriter, r *http.Request, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", field+" is required", false, nil)
		return false
	}
	return true
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
