package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"rollbook/internal/services"
)

// HealthService reports process and dependency health.
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() services.VersionResponse
}

// HealthHandler serves the health check and version endpoints.
type HealthHandler struct {
	service HealthService
	logger  *slog.Logger
}

func NewHealthHandler(service HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// Register adds the health checks to r. They also answer HEAD, which some load
// balancers use.
func (h *HealthHandler) Register(r chi.Router) {
	checks := map[string]http.HandlerFunc{
		"/health":       h.HealthCheck,
		"/health/ready": h.ReadinessCheck,
		"/health/live":  h.LivenessCheck,
	}
	for pattern, fn := range checks {
		r.Get(pattern, fn)
		r.Head(pattern, fn)
	}
	r.Get("/version", h.Version)
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.HealthCheck(r.Context()))
}

// ReadinessCheck answers 503 while any dependency reports not_ready.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	st := h.service.ReadinessCheck(r.Context())
	if st.Status != services.StatusReady {
		failing := make([]string, 0, len(st.Services))
		for name, dep := range st.Services {
			if dep.Status != services.StatusReady {
				failing = append(failing, name)
			}
		}
		h.logger.DebugContext(r.Context(), "not ready", slog.Any("failing", failing))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, st)
}

func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.LivenessCheck(r.Context()))
}

func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}
