// Package httpserver assembles the admin HTTP stack: the chi middleware
// chain, session and auth plumbing, and the JSON routes of the card admin.
package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"campusworks.org/idcard-admin/internal/admin/dashboard"
	custommw "campusworks.org/idcard-admin/internal/admin/httpserver/middleware"
	"campusworks.org/idcard-admin/internal/admin/httpserver/ui"
	"campusworks.org/idcard-admin/internal/admin/rbac"
	"campusworks.org/idcard-admin/internal/card/editor"
	"campusworks.org/idcard-admin/internal/card/snapshot"
	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/exports"
	"campusworks.org/idcard-admin/internal/media"
	"campusworks.org/idcard-admin/internal/records"
)

// Config holds runtime options for the admin HTTP server.
type Config struct {
	Address          string
	BasePath         string
	LoginPath        string
	Environment      string
	Authenticator    custommw.Authenticator
	Sessions         custommw.SessionStore
	CSRFCookieName   string
	CSRFCookiePath   string
	CSRFCookieSecure bool
	CSRFHeaderName   string

	Editor     *editor.Service
	Templates  template.Source
	Records    records.Repository
	Enrollment ui.EnrollmentIssuer
	Media      media.Uploader
	Exports    *exports.Service
	Dashboard  *dashboard.Service

	Logger *zap.Logger
}

// New constructs the HTTP server with the full middleware stack and routes.
func New(cfg Config) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(60 * time.Second))

	basePath := normalizeBasePath(cfg.BasePath)
	loginPath := resolveLoginPath(basePath, cfg.LoginPath)

	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = custommw.DefaultAuthenticator()
	}

	templates := cfg.Templates
	if templates == nil {
		templates = template.NewStaticSource(nil)
	}
	repo := cfg.Records
	if repo == nil {
		repo = records.NewMemoryRepository(nil)
	}
	editorSvc := cfg.Editor
	if editorSvc == nil {
		editorSvc = editor.NewService(templates, snapshot.NewMemoryStore(logger), logger)
	}
	dashboardSvc := cfg.Dashboard
	if dashboardSvc == nil {
		dashboardSvc = dashboard.NewService(repo, cfg.Exports)
	}

	handlers := ui.NewHandlers(ui.Dependencies{
		Editor:     editorSvc,
		Templates:  templates,
		Records:    repo,
		Enrollment: cfg.Enrollment,
		Media:      cfg.Media,
		Exports:    cfg.Exports,
		Dashboard:  dashboardSvc,
		Logger:     logger,
	})

	csrfCfg := custommw.CSRFConfig{
		CookieName: cfg.CSRFCookieName,
		CookiePath: firstNonEmpty(cfg.CSRFCookiePath, basePath),
		HeaderName: cfg.CSRFHeaderName,
		Secure:     cfg.CSRFCookieSecure,
	}

	mountAdminRoutes(router, basePath, routeOptions{
		Authenticator: authenticator,
		Sessions:      cfg.Sessions,
		LoginPath:     loginPath,
		Environment:   cfg.Environment,
		CSRF:          csrfCfg,
		Handlers:      handlers,
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

type routeOptions struct {
	Authenticator custommw.Authenticator
	Sessions      custommw.SessionStore
	LoginPath     string
	Environment   string
	CSRF          custommw.CSRFConfig
	Handlers      *ui.Handlers
}

func mountAdminRoutes(router chi.Router, base string, opts routeOptions) {
	h := opts.Handlers
	auth := newAuthHandlers(opts.Authenticator, base, opts.LoginPath)

	router.Route(base, func(r chi.Router) {
		r.Use(custommw.RequestInfoMiddleware(base))
		r.Use(custommw.Environment(opts.Environment))
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		if opts.Sessions != nil {
			r.Use(custommw.Session(opts.Sessions))
		}

		r.Get("/login", auth.LoginForm)
		r.Post("/login", auth.Login)
		r.Post("/logout", auth.Logout)

		r.Group(func(pr chi.Router) {
			pr.Use(custommw.Auth(opts.Authenticator, opts.LoginPath))
			pr.Use(custommw.CSRF(opts.CSRF))

			pr.With(custommw.RequireCapability(rbac.CapDashboardOverview)).Get("/", h.Dashboard)

			pr.Route("/editor", func(er chi.Router) {
				er.Use(custommw.RequireCapability(rbac.CapTemplatesEdit))
				er.Get("/", h.EditorState)
				er.Post("/selection", h.EditorSelection)
				er.Post("/group-color", h.EditorGroupColor)
				er.Post("/reset", h.EditorReset)
				er.Get("/export", h.EditorExport)
				er.With(custommw.RequireCapability(rbac.CapTemplatesPublish)).Post("/publish", h.EditorPublish)
				er.Route("/fields/{fieldID}", func(fr chi.Router) {
					fr.Post("/", h.EditorFieldPatch)
					fr.Post("/group", h.EditorFieldGroup)
					fr.Post("/link", h.EditorFieldLink)
					fr.Post("/move", h.EditorFieldMove)
					fr.Post("/position", h.EditorFieldPosition)
					fr.Post("/collapse", h.EditorFieldCollapse)
				})
			})

			pr.Route("/records", func(rr chi.Router) {
				rr.With(custommw.RequireCapability(rbac.CapRecordsView)).Get("/", h.RecordsList)
				rr.With(custommw.RequireCapability(rbac.CapRecordsView)).Get("/{recordID}", h.RecordsGet)
				rr.With(custommw.RequireCapability(rbac.CapRecordsManage)).Put("/{recordID}", h.RecordsPut)
				rr.With(custommw.RequireCapability(rbac.CapRecordsManage)).Delete("/{recordID}", h.RecordsDelete)
				rr.With(custommw.RequireCapability(rbac.CapEnrollmentGenerate)).Post("/{recordID}/enrollment-number", h.RecordsEnrollmentNumber)
			})

			pr.With(custommw.RequireCapability(rbac.CapMediaUpload)).Post("/media", h.MediaUpload)

			pr.Route("/exports", func(xr chi.Router) {
				xr.Use(custommw.RequireCapability(rbac.CapExportsRun))
				xr.Post("/", h.ExportsSubmit)
				xr.Get("/", h.ExportsList)
				xr.Get("/{jobID}", h.ExportsGet)
			})

			pr.With(custommw.RequireCapability(rbac.CapPrintCompose)).Get("/print/sheets", h.PrintSheets)
		})
	})
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return "/admin"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func resolveLoginPath(base string, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if base == "/" {
		return "/login"
	}
	return base + "/login"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// RegisterFragment registers a GET handler intended for htmx fragment rendering.
func RegisterFragment(r chi.Router, pattern string, handler http.HandlerFunc) {
	r.With(custommw.RequireHTMX()).Get(pattern, handler)
}
