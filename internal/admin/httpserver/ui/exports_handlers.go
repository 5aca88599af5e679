package ui

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"campusworks.org/idcard-admin/internal/exports"
	"campusworks.org/idcard-admin/internal/platform/httpx"
)

func (h *Handlers) exportsConfigured(w http.ResponseWriter, r *http.Request) bool {
	if h.exports == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_configured", "background exports are not configured", http.StatusServiceUnavailable))
		return false
	}
	return true
}

// ExportsSubmit queues a bulk record export.
func (h *Handlers) ExportsSubmit(w http.ResponseWriter, r *http.Request) {
	if !h.exportsConfigured(w, r) {
		return
	}
	var req struct {
		Type          string `json:"type,omitempty"`
		Class         string `json:"class,omitempty"`
		IncludePhotos bool   `json:"includePhotos,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.exports.Submit(r.Context(), exports.Request{
		Type:          req.Type,
		Class:         req.Class,
		IncludePhotos: req.IncludePhotos,
	})
	if err != nil {
		if errors.Is(err, exports.ErrShuttingDown) {
			httpx.WriteError(r.Context(), w, httpx.NewError("shutting_down", "export service is shutting down", http.StatusServiceUnavailable))
			return
		}
		writeInternal(w, r, h.logger, "exports: submit failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, job)
}

// ExportsList returns all known jobs, newest first.
func (h *Handlers) ExportsList(w http.ResponseWriter, r *http.Request) {
	if !h.exportsConfigured(w, r) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"jobs": h.exports.Jobs()})
}

// ExportsGet returns one job by id.
func (h *Handlers) ExportsGet(w http.ResponseWriter, r *http.Request) {
	if !h.exportsConfigured(w, r) {
		return
	}
	job, err := h.exports.Job(chi.URLParam(r, "jobID"))
	if errors.Is(err, exports.ErrJobNotFound) {
		writeNotFound(w, r, "job_not_found", "export job not found")
		return
	}
	if err != nil {
		writeInternal(w, r, h.logger, "exports: lookup failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, job)
}
