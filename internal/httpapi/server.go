// Package httpapi exposes the family graph over JSON HTTP. Reads are public;
// mutations and exports require an admin Authorizer.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"famgraph/internal/core"
	"famgraph/internal/export"
)

// Options wires the router's collaborators.
type Options struct {
	Service     *core.Service
	Exporter    *export.Exporter
	Authorizer  Authorizer
	Logger      core.Logger
	Metrics     http.Handler
	Vars        http.Handler
	CORSOrigins []string
	Timeout     time.Duration
}

type handler struct {
	svc      *core.Service
	exporter *export.Exporter
	logger   core.Logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NewRouter builds the chi router.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	h := &handler{svc: opts.Service, exporter: opts.Exporter, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match"},
			ExposedHeaders:   []string{"ETag"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}

	admin := requireAdmin(opts.Authorizer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", h.getGraph)
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.listMembers)
			r.With(admin).Post("/", h.createMember)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getMember)
				r.With(admin).Patch("/", h.updateMember)
				r.With(admin).Delete("/", h.deleteMember)
				r.Get("/relationships", h.memberRelationships)
				r.Get("/ancestors", h.ancestors)
				r.Get("/descendants", h.descendants)
			})
		})
		if opts.Exporter != nil {
			r.Route("/exports", func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.createExport)
				r.Get("/", h.listExports)
				r.Get("/{name}", h.getExport)
			})
		}
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Vars != nil {
		r.Method(http.MethodGet, "/debug/vars", opts.Vars)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}
