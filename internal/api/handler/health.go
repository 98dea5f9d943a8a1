package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the datastore is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	service      string
	modelVersion string
	db           Pinger
	logger       *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil, in which case
// readiness only reflects that the process is serving.
func NewHealthHandler(service, modelVersion string, db Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{service: service, modelVersion: modelVersion, db: db, logger: logger}
}

// Register mounts the probe routes at the router root.
func (h *HealthHandler) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/readyz", h.Ready)
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"service":       h.service,
		"model_version": h.modelVersion,
	})
}

// Ready handles GET /readyz. It reports 503 while the datastore cannot be reached.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("readiness: datastore unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
