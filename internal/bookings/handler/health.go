package handler

import (
	"net/http"

	"medbook/internal/bookings/service"
	httputil "medbook/pkg/http"
	"medbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type HealthHandler struct {
	checker service.HealthChecker
	log     *logger.Logger
}

func NewHealthHandler(checker service.HealthChecker, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		log:     log,
	}
}

// Health always answers 200; the body says whether the dependencies are up.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	httputil.WriteOK(w, h.checker.Health(r.Context()))
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	report := h.checker.Health(r.Context())
	if !report.Healthy() {
		h.log.Warn("Readiness check failed",
			"redis", report.Redis,
			"rabbitmq", report.RabbitMQ,
			"path", r.URL.Path,
		)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, report)
		return
	}
	httputil.WriteOK(w, report)
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
