package http

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/melenae/task-tracker-app/internal/application"
)

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed",
				"module", "http",
				"layer", "adapter",
				"operation", "readiness",
				"outcome", "failure",
				"dependency", name,
				"error", err,
			)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", name+" unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) syncStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"source": h.service.SourceTag(),
		"sync":   h.service.SyncStatus(),
	}
	if h.listener != nil {
		resp["listener"] = map[string]any{
			"state": h.listener.State(),
			"stats": h.listener.Stats(),
		}
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := h.service.ListDeadLetters(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"dead_letters": resp})
}

func (h *Handler) createIssue(w http.ResponseWriter, r *http.Request) {
	var req application.CreateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	resp, err := h.service.CreateIssue(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, resp)
}

func (h *Handler) getIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := issueIDParam(w, r)
	if !ok {
		return
	}
	resp, err := h.service.GetIssue(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) updateIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := issueIDParam(w, r)
	if !ok {
		return
	}
	var req application.UpdateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	resp, err := h.service.UpdateIssue(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := issueIDParam(w, r)
	if !ok {
		return
	}
	var req application.ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	resp, err := h.service.ChangeStatus(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	id, ok := issueIDParam(w, r)
	if !ok {
		return
	}
	var req application.AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	resp, err := h.service.AddComment(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, resp)
}

func (h *Handler) deleteIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := issueIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteIssue(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func issueIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid issue id")
		return 0, false
	}
	return id, true
}
