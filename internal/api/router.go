package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/gray-logic-integrations/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (token passed as query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(s.requirePermission(auth.PermIntegrationRead)).Get("/integrations", s.handleListIntegrations)

			r.Route("/flows", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermFlowRun))
				r.Get("/", s.handleListFlows)
				r.Post("/", s.handleStartFlow)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetFlow)
					r.Post("/", s.handleConfigureFlow)
					r.Delete("/", s.handleAbortFlow)
				})
			})

			r.Route("/entries", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermEntryRead)).Get("/", s.handleListEntries)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermEntryRead)).Get("/", s.handleGetEntry)
					r.With(s.requirePermission(auth.PermEntryDelete)).Delete("/", s.handleDeleteEntry)
					r.With(s.requirePermission(auth.PermEntryRead)).Get("/state", s.handleGetEntryState)
					r.With(s.requirePermission(auth.PermFlowRun)).Post("/refresh", s.handleRefreshEntry)
				})
			})

			if s.audit != nil {
				r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAudit)
			}
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			s.logger.Warn("health check: database unreachable", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	body := map[string]any{
		"status":  status,
		"version": s.version,
	}
	if s.site.ID != "" {
		body["site"] = s.site
	}
	writeJSON(w, code, body)
}
