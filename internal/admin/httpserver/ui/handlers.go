// Package ui exposes the HTTP handlers of the admin surface: the template
// editor, the holder records directory, media upload, bulk exports, and the
// print compositor.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"campusworks.org/idcard-admin/internal/admin/dashboard"
	custommw "campusworks.org/idcard-admin/internal/admin/httpserver/middleware"
	"campusworks.org/idcard-admin/internal/card/editor"
	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/exports"
	"campusworks.org/idcard-admin/internal/media"
	"campusworks.org/idcard-admin/internal/platform/httpx"
	"campusworks.org/idcard-admin/internal/records"
)

const maxBodyBytes = 1 << 20

// EnrollmentIssuer assigns a unique enrollment number to a student record.
type EnrollmentIssuer interface {
	Next(ctx context.Context, studentID string) (string, error)
}

// Dependencies collects external services required by the UI handlers.
type Dependencies struct {
	Editor     *editor.Service
	Templates  template.Source
	Records    records.Repository
	Enrollment EnrollmentIssuer
	Media      media.Uploader
	Exports    *exports.Service
	Dashboard  *dashboard.Service
	Logger     *zap.Logger
}

// Handlers exposes HTTP handlers for admin pages and fragments.
type Handlers struct {
	editor     *editor.Service
	templates  template.Source
	records    records.Repository
	enrollment EnrollmentIssuer
	media      media.Uploader
	exports    *exports.Service
	dashboard  *dashboard.Service
	logger     *zap.Logger
}

// NewHandlers wires the UI handler set.
func NewHandlers(deps Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		editor:     deps.Editor,
		templates:  deps.Templates,
		records:    deps.Records,
		enrollment: deps.Enrollment,
		media:      deps.Media,
		exports:    deps.Exports,
		dashboard:  deps.Dashboard,
		logger:     logger,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (*custommw.User, bool) {
	user, ok := custommw.UserFromContext(r.Context())
	if !ok || user == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return user, true
}

func writeNotFound(w http.ResponseWriter, r *http.Request, code, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(code, message, http.StatusNotFound))
}

func writeInternal(w http.ResponseWriter, r *http.Request, logger *zap.Logger, op string, err error) {
	logger.Error(op, zap.Error(err))
	httpx.WriteError(r.Context(), w, httpx.NewError("internal", "internal server error", http.StatusInternalServerError))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "request body too large"
	}
	return err.Error()
}
