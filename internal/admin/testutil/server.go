// Package testutil spins up the admin HTTP stack against in-memory backends
// for integration tests.
package testutil

import (
	"net/http/httptest"
	"testing"

	"campusworks.org/idcard-admin/internal/admin/httpserver"
	"campusworks.org/idcard-admin/internal/admin/httpserver/middleware"
	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/records"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithAuthenticator overrides the authenticator used by the admin server.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Authenticator = auth
	}
}

// WithBasePath sets a custom base path for the admin routes.
func WithBasePath(path string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.BasePath = path
	}
}

// WithTemplates wires a custom template source.
func WithTemplates(source template.Source) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Templates = source
	}
}

// WithRecords wires a custom records repository.
func WithRecords(repo records.Repository) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Records = repo
	}
}

// SeedTemplates returns a static source preloaded with a minimal two-field
// student template.
func SeedTemplates() *template.StaticSource {
	return template.NewStaticSource(map[string][]byte{
		"student:standard": []byte(`{
			"front": {
				"pageStyle": {"width": "400px", "height": "640px"},
				"items": [
					{"type": "text", "text": "Name:"},
					{"type": "text", "text": "{{name}}", "bookmark": "name"}
				]
			}
		}`),
	})
}

// SeedRecords returns a repository with one student and one staff record.
func SeedRecords() *records.MemoryRepository {
	return records.NewMemoryRepository(map[string]records.Record{
		"2026-0001": records.NewRecord(map[string]string{
			"type": "student", "name": "Asha Rao", "admission_no": "2026-0001", "class": "7B",
		}),
		"EMP-11": records.NewRecord(map[string]string{
			"type": "staff", "name": "Ravi Iyer", "employee_id": "EMP-11",
		}),
	})
}

// NewServer constructs an httptest server running the admin HTTP stack with
// in-memory defaults.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	cfg := httpserver.Config{
		Address:        ":0",
		BasePath:       "/admin",
		CSRFCookieName: "csrf_token",
		CSRFHeaderName: "X-CSRF-Token",
		Authenticator:  middleware.DefaultAuthenticator(),
		Templates:      SeedTemplates(),
		Records:        SeedRecords(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	srv := httpserver.New(cfg)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}
