package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aegis-soc/aegis-soc/internal/alerts"
	"github.com/aegis-soc/aegis-soc/internal/directory"
	"github.com/aegis-soc/aegis-soc/internal/observability"
	"github.com/aegis-soc/aegis-soc/internal/rbac"
	"github.com/aegis-soc/aegis-soc/internal/session"
	"github.com/aegis-soc/aegis-soc/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionHandler     *session.Handler
	DirectoryHandler   *directory.Handler
	AlertsHandler      *alerts.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.SessionHandler.MountRoutes)
	if params.DirectoryHandler != nil {
		r.Route("/users", params.DirectoryHandler.MountRoutes)
	}
	if params.AlertsHandler != nil {
		r.Route("/alerts", params.AlertsHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
