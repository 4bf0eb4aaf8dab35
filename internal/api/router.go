package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds the dependency checks behind /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/status", respond(s.handleStatus))
	r.Handle("/metrics", promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{}))

	// Light commands
	r.Get("/lights", respond(s.handleListLights))
	r.Post("/on/{id}", s.handleLightCommand(true))
	r.Post("/off/{id}", s.handleLightCommand(false))
	r.Post("/on_all", s.handleBulkCommand(true))
	r.Post("/off_all", s.handleBulkCommand(false))

	// Schedules
	r.Route("/schedules", func(r chi.Router) {
		r.Get("/", respond(s.handleListSchedules))
		r.Post("/", respond(s.handleCreateSchedule))

		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", respond(s.handleDeleteSchedule))
			r.Put("/toggle", respond(s.handleToggleSchedule))
			r.Get("/runs", respond(s.handleListScheduleRuns))
		})
	})

	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

// handleHealth reports whether the service and its required
// dependencies are usable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}
	if s.mqtt != nil {
		body["mqtt_connected"] = s.mqtt.IsConnected()
	}
	writeJSON(w, status, body)
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path != "" {
		return s.wsCfg.Path
	}
	return "/ws"
}
