package server

import (
	"net/http"

	jsonwriter "github.com/dgellow/cms-front/internal/json"
	"github.com/dgellow/cms-front/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig wires the dashboard routes
type RouterConfig struct {
	Name     string
	Handlers *Handlers
	Guard    GuardConfig
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics. The endpoint is not mounted when nil.
	Gatherer prometheus.Gatherer
	// MetricsUser and MetricsPasswordHash put /metrics behind basic auth
	// when both are set
	MetricsUser         string
	MetricsPasswordHash string
}

// NewRouter builds the complete HTTP handler. Every page route passes through
// the route guard; /health and /metrics sit outside it.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	h := cfg.Handlers

	r.Use(
		NewRequestIDMiddleware(),
		NewLoggerMiddleware("http", cfg.Metrics),
		NewRecoverMiddleware("http"),
		middleware.GetHead,
	)

	r.Method(http.MethodGet, "/health", NewHealthHandler(cfg.Name))

	if cfg.Gatherer != nil {
		var metricsHandler http.Handler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
		if cfg.MetricsUser != "" && cfg.MetricsPasswordHash != "" {
			metricsHandler = ChainMiddleware(metricsHandler,
				NewBasicAuthMiddleware("metrics", cfg.MetricsUser, cfg.MetricsPasswordHash))
		}
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	var decisions *prometheus.CounterVec
	if cfg.Metrics != nil {
		decisions = cfg.Metrics.GuardDecisions
	}

	r.Group(func(r chi.Router) {
		r.Use(NewRouteGuardMiddleware(cfg.Guard, decisions))

		r.Get("/", h.Root)
		r.Get(h.loginPath, h.Login)
		r.Get(h.landingPath, h.Landing)
		r.Get("/api/auth/google", h.GoogleLogin)
		r.Get("/api/auth/me", h.AuthMe)
		r.Post("/logout", h.Logout)

		r.Get(h.dashboardPath, h.Dashboard)

		r.Get("/blogs", h.Blogs())
		r.Post("/blogs", h.CreateBlog())
		r.Get("/blogs/new", h.NewBlog())
		r.Get("/blogs/{id}", h.Blog())
		r.Post("/blogs/{id}", h.UpdateBlog())
		r.Get("/blogs/{id}/edit", h.EditBlog())
		r.Post("/blogs/{id}/delete", h.DeleteBlog())

		r.Get("/authors", h.Authors())
		r.Post("/authors", h.CreateAuthor())
		r.Get("/authors/new", h.NewAuthor())
		r.Get("/authors/{id}", h.Author())
		r.Post("/authors/{id}", h.UpdateAuthor())
		r.Get("/authors/{id}/edit", h.EditAuthor())
		r.Post("/authors/{id}/delete", h.DeleteAuthor())

		r.Get("/editor", h.Documents())
		r.Post("/editor", h.CreateDocument())
		r.Get("/editor/new", h.NewDocument())
		r.Get("/editor/{id}", h.Document())
		r.Post("/editor/{id}", h.UpdateDocument())
		r.Get("/editor/{id}/edit", h.EditDocument())
		r.Post("/editor/{id}/delete", h.DeleteDocument())

		r.Get("/api-keys", h.APIKeys)
		r.Post("/api-keys/generate", h.GenerateAPIKey)
		r.Post("/api-keys/deactivate", h.DeactivateAPIKey())

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			if wantsJSON(r) {
				jsonwriter.WriteNotFound(w, "Not found")
				return
			}
			h.renderStatus(w, r, http.StatusNotFound, "error", pageData{
				Title:       "Not found",
				Message:     "This page does not exist",
				MessageType: "error",
			})
		})
	})

	return r
}
