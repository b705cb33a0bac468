// Package handlers contains the HTTP handlers of the LimitGate server: health
// reporting, the admission check endpoint, and rule administration.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/logger"
)

// HealthHandler provides the health check endpoints. The counter store is the
// only hard dependency of the decision path, so it is the only health gate;
// rule source staleness degrades freshness, not availability.
type HealthHandler struct {
	store service.CounterStore
	log   logger.Logger
}

// NewHealthHandler creates the handler.
func NewHealthHandler(store service.CounterStore, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		store: store,
		log:   log.WithComponent("health_handler"),
	}
}

// HealthCheck reports the service health and the store connectivity.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	checks := map[string]string{"counter_store": "ok"}
	httpStatus := http.StatusOK
	status := "healthy"

	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Warn(c.Request.Context(), "counter store health check failed", logger.Error(err))
		checks["counter_store"] = err.Error()
		httpStatus = http.StatusServiceUnavailable
		status = "unhealthy"
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// ReadinessCheck reports whether the service can decide requests.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	h.HealthCheck(c)
}

// LivenessCheck reports process liveness only.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
