package ui

import (
	"errors"
	"net/http"

	"campusworks.org/idcard-admin/internal/media"
	"campusworks.org/idcard-admin/internal/platform/httpx"
)

// MediaUpload accepts a base64 image payload and returns the hosted URL for
// use as a field src.
func (h *Handlers) MediaUpload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_configured", "media upload is not configured", http.StatusServiceUnavailable))
		return
	}

	var req struct {
		Payload string `json:"payload"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	url, err := h.media.Upload(r.Context(), req.Payload)
	if err != nil {
		if errors.Is(err, media.ErrEmptyPayload) || errors.Is(err, media.ErrInvalidPayload) {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", err.Error(), http.StatusUnprocessableEntity))
			return
		}
		writeInternal(w, r, h.logger, "media: upload failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}
