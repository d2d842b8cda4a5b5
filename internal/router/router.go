package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-user-api/internal/config"
	"go-user-api/internal/handler"
	"go-user-api/internal/metrics"
	"go-user-api/internal/middleware"
	"go-user-api/internal/model"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Audit  *handler.AuditHandler
	Health *handler.HealthHandler
}

// New builds the HTTP routes. m may be nil, in which case /metrics is not
// served and requests are not instrumented. /metrics takes the static
// METRICS_TOKEN bearer when configured and an admin session otherwise.
func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if m != nil {
		r.Use(middleware.Metrics(m.HTTPRequests, m.HTTPDuration))
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	adminOnly := []func(http.Handler) http.Handler{
		authMiddleware.Authenticate,
		authMiddleware.RequireRoles(model.RoleAdmin),
	}

	r.Get("/health", h.Health.Health)
	if m != nil {
		scrape := adminOnly
		if cfg.MetricsToken != "" {
			scrape = []func(http.Handler) http.Handler{middleware.StaticBearer(cfg.MetricsToken)}
		}
		r.With(scrape...).Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/register", h.Auth.Register)
			auth.Post("/forget", h.Auth.Forget)
			auth.Post("/reset", h.Auth.Reset)
			auth.Post("/check-token", h.Auth.CheckToken)
			auth.With(authMiddleware.Authenticate).Get("/me", h.Auth.Me)
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(adminOnly...)

			users.Post("/", h.User.Create)
			users.Get("/", h.User.List)
			users.Get("/{id}", h.User.Get)
			users.Put("/{id}", h.User.Update)
			users.Patch("/{id}", h.User.Patch)
			users.Delete("/{id}", h.User.Delete)
		})

		api.With(adminOnly...).Get("/audit", h.Audit.List)
	})

	return r
}
