package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/metrics"
	"helmet-guard-go/internal/models"
)

// HealthChecker is implemented by detector backends that can probe a remote service
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	cfg     *config.Config
	backend string
	checker HealthChecker
	metrics *metrics.Metrics
	started time.Time
}

func NewHealthHandler(cfg *config.Config, backend string, checker HealthChecker, m *metrics.Metrics) *HealthHandler {
	return &HealthHandler{
		cfg:     cfg,
		backend: backend,
		checker: checker,
		metrics: m,
		started: time.Now(),
	}
}

type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	WorkerID string `json:"worker_id" example:"helmet-guard-1"`
	Detector string `json:"detector" example:"onnx"`
	Error    string `json:"error,omitempty"`
}

type InfoResponse struct {
	WorkerID     string           `json:"worker_id" example:"helmet-guard-1"`
	Version      string           `json:"version" example:"1.0.0"`
	Environment  string           `json:"environment" example:"development"`
	StartTime    time.Time        `json:"start_time"`
	Detector     string           `json:"detector" example:"onnx"`
	Capabilities []string         `json:"capabilities"`
	Config       InfoConfig       `json:"config"`
	Stats        metrics.Snapshot `json:"stats"`
}

type InfoConfig struct {
	ModelClasses     []string `json:"model_classes"`
	ViolationClasses []string `json:"violation_classes"`
	DefaultThreshold float64  `json:"default_threshold" example:"0.5"`
	MinThreshold     float64  `json:"min_threshold" example:"0.1"`
	MaxThreshold     float64  `json:"max_threshold" example:"1"`
	ThresholdStep    float64  `json:"threshold_step" example:"0.05"`
	ViolationLog     string   `json:"violation_log" example:"violations.xlsx"`
	VoiceEnabled     bool     `json:"voice_enabled"`
	VoiceCooldown    string   `json:"voice_cooldown" example:"5s"`
	EventsEnabled    bool     `json:"events_enabled"`
	WebcamDevice     string   `json:"webcam_device" example:"0"`
}

// HealthCheck godoc
// @Summary Health check
// @Description Check if the worker and its detector are responsive
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		WorkerID: h.cfg.WorkerID,
		Detector: h.backend,
	}

	if h.checker != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.checker.HealthCheck(ctx); err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Info godoc
// @Summary Worker information
// @Description Worker identity, detection settings and live counters
// @Tags health
// @Produce json
// @Success 200 {object} InfoResponse
// @Router /info [get]
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		WorkerID:    h.cfg.WorkerID,
		Version:     h.cfg.Version,
		Environment: h.cfg.Environment,
		StartTime:   h.started,
		Detector:    h.backend,
		Capabilities: []string{
			"image_detection",
			"video_detection",
			"webcam_detection",
			"violation_log",
			"voice_alerts",
		},
		Config: InfoConfig{
			ModelClasses:     h.cfg.ModelClasses,
			ViolationClasses: h.cfg.NoHelmetClasses,
			DefaultThreshold: h.cfg.DefaultThreshold,
			MinThreshold:     models.MinThreshold,
			MaxThreshold:     models.MaxThreshold,
			ThresholdStep:    models.ThresholdStep,
			ViolationLog:     h.cfg.ViolationLogPath,
			VoiceEnabled:     h.cfg.VoiceEnabled,
			VoiceCooldown:    h.cfg.VoiceCooldown.String(),
			EventsEnabled:    h.cfg.NatsEnabled,
			WebcamDevice:     h.cfg.WebcamDevice,
		},
		Stats: h.metrics.Snapshot(),
	})
}
