package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"enrolld/internal/platform/metrics"
	"enrolld/internal/platform/middleware"
	registration "enrolld/internal/registration/handler"
	settings "enrolld/internal/settings/handler"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router wires the public and admin surfaces. Handlers stay thin; all
// cross-cutting behavior lives in the middleware chain.
func Router(
	logger *slog.Logger,
	adminToken string,
	registrationHandler *registration.Handler,
	settingsHandler *settings.Handler,
	httpMetrics *metrics.HTTPMetrics,
	healthChecks map[string]HealthChecker,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(httpMetrics.Middleware)

	registrationHandler.Register(r)

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(middleware.RequireAdminToken(adminToken, logger))
		registrationHandler.RegisterAdmin(admin)
		settingsHandler.RegisterAdmin(admin)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handleHealth(healthChecks))

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := "ok"
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body = name + " unhealthy"
				break
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
