package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gateguard/gateguard-api/internal/auditlog/model"
	"github.com/gateguard/gateguard-api/internal/auditlog/service"
)

// LogService is the subset of service.LogService the handler needs.
type LogService interface {
	List(ctx context.Context, q model.ListQuery) (*model.ListResult, error)
	Detail(ctx context.Context, logID int64) (*model.LogDetail, error)
}

// LogHandler serves the audit-log query endpoints.
type LogHandler struct {
	svc    LogService
	logger *zap.Logger
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(svc LogService, logger *zap.Logger) *LogHandler {
	return &LogHandler{svc: svc, logger: logger}
}

// Register mounts the /logs routes on rg. mw runs before every log route.
func (h *LogHandler) Register(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	logs := rg.Group("/logs", mw...)
	logs.GET("", h.List)
	logs.GET("/:log_id", h.Get)
}

// List handles GET /v1/logs.
func (h *LogHandler) List(c *gin.Context) {
	var q model.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	res, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "fields": ve.Fields})
			return
		}
		h.logger.Error("list logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/logs/:log_id.
func (h *LogHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("log_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "log_id must be an integer"})
		return
	}

	d, err := h.svc.Detail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "log not found"})
			return
		}
		h.logger.Error("get log", zap.Int64("log_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, d)
}
