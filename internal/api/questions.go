package api

import (
	"errors"
	"net/http"

	"github.com/sheetsense/sheetsense/internal/assistant"
	"github.com/sheetsense/sheetsense/internal/auth"
	"github.com/sheetsense/sheetsense/internal/config"
	"github.com/sheetsense/sheetsense/internal/llm"
)

type questionRequest struct {
	Filename string `json:"filename"`
	Query    string `json:"query"`
}

type chatRequest struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

func handleQuery(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !beginQuestion(deps, w, r, &req) {
		return
	}
	answer, err := deps.Assistant.Ask(r.Context(), req.Filename, req.Query)
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func handleCharts(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !beginQuestion(deps, w, r, &req) {
		return
	}
	charts, err := deps.Assistant.Charts(r.Context(), req.Filename, req.Query)
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, charts)
}

func handleChat(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}
	if !authorize(w, r, auth.RoleViewer) {
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requiredText(w, r, "filename", req.Filename) || !requiredText(w, r, "message", req.Message) {
		return
	}
	reply, err := deps.Assistant.Chat(r.Context(), req.Filename, req.Message)
	if err != nil {
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func beginQuestion(deps Dependencies, w http.ResponseWriter, r *http.Request, req *questionRequest) bool {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return false
	}
	if !authorize(w, r, auth.RoleViewer) {
		return false
	}
	if !decodeJSON(w, r, req) {
		return false
	}
	return requiredText(w, r, "filename", req.Filename) && requiredText(w, r, "query", req.Query)
}

// handleBackend reports where the next inference call would go. An
// unavailable backend is a normal answer here, not an error.
func handleBackend(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Backends == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "INFERENCE_NOT_CONFIGURED", "inference client is not configured", false, nil)
		return
	}
	if !authorize(w, r, auth.RoleViewer) {
		return
	}
	backend, err := deps.Backends.Select(r.Context())
	payload := map[string]any{
		"backend":           backend,
		"available":         err == nil,
		"remote_configured": deps.Backends.RemoteConfigured(),
	}
	switch {
	case err == nil:
	case errors.Is(err, llm.ErrBackendUnavailable):
		payload["backend"] = "none"
		payload["message"] = assistant.UserMessage(err)
	default:
		writeDomainError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
