package ui

import (
	"net/http"

	"campusworks.org/idcard-admin/internal/platform/httpx"
)

// Dashboard returns the landing-page overview.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	if h.dashboard == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_configured", "dashboard is not configured", http.StatusServiceUnavailable))
		return
	}
	overview, err := h.dashboard.Overview(r.Context())
	if err != nil {
		writeInternal(w, r, h.logger, "dashboard: overview failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, overview)
}
