package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gateguard/gateguard-api/internal/auth"
	"github.com/gateguard/gateguard-api/internal/faultinject"
	"github.com/gateguard/gateguard-api/internal/scoring"
)

// ScoreRequest is the body of POST /v1/score.
type ScoreRequest struct {
	RequestID string `json:"request_id"`
	Host      string `json:"host" binding:"required"`
	Path      string `json:"path"`
}

// ScoreResponse is the decision returned to the engine.
type ScoreResponse struct {
	RequestID    string  `json:"request_id"`
	ModelVersion string  `json:"model_version"`
	Score        float64 `json:"score"`
	Label        string  `json:"label"`
	Threshold    float64 `json:"threshold"`
	LatencyMS    int64   `json:"latency_ms"`
}

// ScoreHandler serves the scoring endpoint.
type ScoreHandler struct {
	engine *scoring.Engine
	faults *faultinject.Injector
	gate   *auth.Gate
	logger *zap.Logger
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(engine *scoring.Engine, faults *faultinject.Injector, gate *auth.Gate, logger *zap.Logger) *ScoreHandler {
	return &ScoreHandler{engine: engine, faults: faults, gate: gate, logger: logger}
}

// Register mounts POST /score on rg behind the bearer token check.
func (h *ScoreHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/score", auth.RequireAPIToken(h.gate), h.Score)
}

// Score handles POST /v1/score.
func (h *ScoreHandler) Score(c *gin.Context) {
	start := time.Now()

	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	switch h.faults.Apply(req.Host, req.Path) {
	case faultinject.FaultServerError:
		h.logger.Info("forced server error",
			zap.String("request_id", req.RequestID),
			zap.String("host", req.Host),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": faultinject.ServerErrorDetail})
		return
	case faultinject.FaultMalformedBody:
		h.logger.Info("forced malformed body",
			zap.String("request_id", req.RequestID),
			zap.String("host", req.Host),
		)
		c.Data(http.StatusOK, "application/json", []byte(faultinject.MalformedBody(req.RequestID)))
		return
	}

	res := h.engine.Evaluate(req.Host, req.Path)
	RecordScore(res.Label, res.Score)

	c.JSON(http.StatusOK, ScoreResponse{
		RequestID:    req.RequestID,
		ModelVersion: h.engine.ModelVersion(),
		Score:        scoring.Round4(res.Score),
		Label:        res.Label,
		Threshold:    res.Threshold,
		LatencyMS:    time.Since(start).Milliseconds(),
	})
}
