package ui

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"campusworks.org/idcard-admin/internal/platform/httpx"
	"campusworks.org/idcard-admin/internal/records"
)

type recordView struct {
	ID     string         `json:"id"`
	Fields records.Record `json:"fields"`
}

// RecordsList returns holder records filtered by type, class, and limit.
func (h *Handlers) RecordsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := records.Query{
		Type:  strings.TrimSpace(q.Get("type")),
		Class: strings.TrimSpace(q.Get("class")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_limit", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		query.Limit = limit
	}

	recs, err := h.records.List(r.Context(), query)
	if err != nil {
		writeInternal(w, r, h.logger, "records: list failed", err)
		return
	}

	views := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, recordView{ID: rec.ID(), Fields: rec})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"records": views})
}

// RecordsGet returns a single holder record.
func (h *Handlers) RecordsGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	rec, err := h.records.Get(r.Context(), id)
	if errors.Is(err, records.ErrNotFound) {
		writeNotFound(w, r, "record_not_found", "record not found")
		return
	}
	if err != nil {
		writeInternal(w, r, h.logger, "records: get failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, recordView{ID: id, Fields: rec})
}

// RecordsPut creates or replaces a holder record.
func (h *Handlers) RecordsPut(w http.ResponseWriter, r *http.Request) {
	var raw map[string]string
	if !decodeJSON(w, r, &raw) {
		return
	}

	id := chi.URLParam(r, "recordID")
	rec := records.NewRecord(raw)
	if err := h.records.Put(r.Context(), id, rec); err != nil {
		if errors.Is(err, records.ErrInvalidRecord) {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_record", err.Error(), http.StatusUnprocessableEntity))
			return
		}
		writeInternal(w, r, h.logger, "records: put failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, recordView{ID: id, Fields: rec})
}

// RecordsDelete removes a holder record. Deleting an absent record succeeds.
func (h *Handlers) RecordsDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Delete(r.Context(), chi.URLParam(r, "recordID")); err != nil {
		writeInternal(w, r, h.logger, "records: delete failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordsEnrollmentNumber claims a fresh enrollment number for a student
// record and stores it on the record.
func (h *Handlers) RecordsEnrollmentNumber(w http.ResponseWriter, r *http.Request) {
	if h.enrollment == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_configured", "enrollment numbering is not configured", http.StatusServiceUnavailable))
		return
	}

	id := chi.URLParam(r, "recordID")
	rec, err := h.records.Get(r.Context(), id)
	if errors.Is(err, records.ErrNotFound) {
		writeNotFound(w, r, "record_not_found", "record not found")
		return
	}
	if err != nil {
		writeInternal(w, r, h.logger, "records: get failed", err)
		return
	}
	if rec.Type() != records.TypeStudent {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_record", "enrollment numbers apply to student records only", http.StatusUnprocessableEntity))
		return
	}

	number, err := h.enrollment.Next(r.Context(), id)
	if err != nil {
		writeInternal(w, r, h.logger, "records: enrollment number failed", err)
		return
	}

	rec[records.KeyAdmissionNo] = number
	if err := h.records.Put(r.Context(), id, rec); err != nil {
		writeInternal(w, r, h.logger, "records: store enrollment number failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "number": number})
}
