package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-utility/internal/auth"
	"github.com/odyssey-erp/odyssey-utility/internal/observability"
	"github.com/odyssey-erp/odyssey-utility/internal/platform/httpx"
	reportshttp "github.com/odyssey-erp/odyssey-utility/internal/reports/http"
	"github.com/odyssey-erp/odyssey-utility/internal/shared"
	"github.com/odyssey-erp/odyssey-utility/jobs"
	"github.com/odyssey-erp/odyssey-utility/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	ReportsHandler *reportshttp.Handler
	RenderHandler  *report.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		if params.AuthHandler != nil {
			api.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			api.Route("/reports", func(rr chi.Router) {
				rr.Use(shared.RequireUser(httpx.Unauthenticated))
				params.ReportsHandler.MountRoutes(rr)
			})
		}
	})

	if params.RenderHandler != nil {
		r.Route("/report", params.RenderHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
