package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/frameprocessing"
	"helmet-guard-go/internal/services/streamcapture"
)

type ErrorResponse struct {
	Error string `json:"error" example:"session not found"`
}

type SuccessResponse struct {
	Message string `json:"message" example:"Session stopped"`
}

// SessionService is the session dispatcher used by the handlers
type SessionService interface {
	RunImage(ctx context.Context, name string, data []byte, threshold float64) (*frameprocessing.FrameResult, models.SessionInfo, error)
	StartVideo(name, path string, threshold float64, cleanup bool) (models.SessionInfo, error)
	StartWebcam(device string, threshold float64) (models.SessionInfo, error)
	Stop(id string) error
	Get(id string) (models.SessionInfo, bool)
	List() []models.SessionInfo
}

// Display serves the live views of a session
type Display interface {
	StreamMJPEGHTTP(w http.ResponseWriter, r *http.Request, sessionID string)
	ServeEvents(w http.ResponseWriter, r *http.Request, sessionID string)
}

// ViolationReader reads back the violation log
type ViolationReader interface {
	Records(ctx context.Context) ([]models.ViolationRecord, error)
}

var (
	errBadThreshold = errors.New("threshold must be a number")
	errEmptyUpload  = errors.New("uploaded file is empty")
)

// parseThreshold reads an optional threshold value, falling back to def
func parseThreshold(raw string, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errBadThreshold
	}
	if err := models.ValidateThreshold(t); err != nil {
		return 0, err
	}
	return t, nil
}

// statusFor maps session errors to HTTP status codes
func statusFor(err error) int {
	var detErr *models.DetectionError
	switch {
	case errors.Is(err, streamcapture.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, streamcapture.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, streamcapture.ErrNoFrame):
		return http.StatusUnprocessableEntity
	case errors.As(err, &detErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}
