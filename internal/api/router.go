package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency probe in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)

		r.With(s.authMiddleware).Get("/me", s.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/users", func(r chi.Router) {
			r.With(s.requireAdmin).Get("/", s.handleListUsers)

			r.Route("/{username}", func(r chi.Router) {
				r.With(s.requireAdmin).Get("/", s.handleGetUser)
				r.Patch("/", s.handleUpdateUser)
				r.Delete("/", s.handleDeleteUser)
			})
		})

		r.With(s.requireAdmin).Get("/audit", s.handleListAuditLogs)
		r.With(s.requireAdmin).Get("/metrics", s.handleMetrics)
	})

	return r
}

// handleHealth reports server status and the health of optional
// dependencies. A failing database makes the whole response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	probe := func(name string, hc HealthChecker, critical bool) {
		if hc == nil {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := hc.HealthCheck(ctx); err != nil {
			body[name] = "unhealthy"
			if critical {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
			return
		}
		body[name] = "ok"
	}
	probe("database", s.db, true)
	probe("mqtt", s.mqtt, false)

	writeJSON(w, status, body)
}
