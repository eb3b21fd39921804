package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/helpers"
	"helmet-guard-go/internal/logging"
	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/streamcapture"
)

type SessionHandler struct {
	cfg      *config.Config
	sessions SessionService
	display  Display
}

func NewSessionHandler(cfg *config.Config, sessions SessionService, display Display) *SessionHandler {
	return &SessionHandler{cfg: cfg, sessions: sessions, display: display}
}

// WebcamRequest starts live capture
type WebcamRequest struct {
	Threshold *float64 `json:"threshold" form:"threshold" example:"0.5"`
	Device    string   `json:"device" form:"device" example:"0"`
}

type SessionListResponse struct {
	Sessions []models.SessionInfo `json:"sessions"`
	Count    int                  `json:"count"`
}

// StartVideo godoc
// @Summary Start a video session
// @Description Uploads an mp4/avi/mov file and processes it frame by frame in the background
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Video file"
// @Param threshold formData number false "Confidence threshold (0.1-1.0)"
// @Success 202 {object} models.SessionInfo
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /sessions/video [post]
func (h *SessionHandler) StartVideo(c *gin.Context) {
	threshold, err := parseThreshold(c.PostForm("threshold"), h.cfg.DefaultThreshold)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("file is required: %w", err))
		return
	}
	if !helpers.IsVideoFile(fh.Filename) {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("unsupported video type: %s", fh.Filename))
		return
	}
	if fh.Size == 0 {
		abortWithError(c, http.StatusBadRequest, errEmptyUpload)
		return
	}

	tmp, err := os.CreateTemp(h.cfg.UploadDir, "helmet-*"+strings.ToLower(filepath.Ext(fh.Filename)))
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Errorf("failed to spool upload: %w", err))
		return
	}
	path := tmp.Name()
	tmp.Close()

	if err := c.SaveUploadedFile(fh, path); err != nil {
		os.Remove(path)
		abortWithError(c, http.StatusInternalServerError, fmt.Errorf("failed to spool upload: %w", err))
		return
	}

	info, err := h.sessions.StartVideo(fh.Filename, path, threshold, true)
	if err != nil {
		logging.Warn(c).Err(err).Str("file", fh.Filename).Msg("Failed to start video session")
		abortWithError(c, statusFor(err), err)
		return
	}

	logging.SetSession(c, info.ID)
	logging.Info(c).Str("file", fh.Filename).Int64("bytes", fh.Size).Msg("Video session started")
	c.JSON(http.StatusAccepted, info)
}

// StartWebcam godoc
// @Summary Start live webcam capture
// @Description Opens the capture device and streams annotated frames; replaces a running webcam session
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body WebcamRequest false "Webcam options"
// @Success 202 {object} models.SessionInfo
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions/webcam [post]
func (h *SessionHandler) StartWebcam(c *gin.Context) {
	var req WebcamRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}
	}

	threshold := h.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if err := models.ValidateThreshold(threshold); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	info, err := h.sessions.StartWebcam(req.Device, threshold)
	if err != nil {
		logging.Warn(c).Err(err).Str("device", req.Device).Msg("Failed to start webcam session")
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusServiceUnavailable
		}
		abortWithError(c, status, err)
		return
	}

	logging.SetSession(c, info.ID)
	logging.Info(c).Str("device", info.Source).Msg("Webcam session started")
	c.JSON(http.StatusAccepted, info)
}

// ListSessions godoc
// @Summary List sessions
// @Tags sessions
// @Produce json
// @Success 200 {object} SessionListResponse
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	list := h.sessions.List()
	c.JSON(http.StatusOK, SessionListResponse{Sessions: list, Count: len(list)})
}

// GetSession godoc
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionInfo
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	info, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		abortWithError(c, http.StatusNotFound, streamcapture.ErrSessionNotFound)
		return
	}
	c.JSON(http.StatusOK, info)
}

// StopSession godoc
// @Summary Stop a session
// @Description Cancels a running video or webcam session and waits for it to terminate
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionInfo
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) StopSession(c *gin.Context) {
	id := c.Param("id")
	logging.SetSession(c, id)

	if err := h.sessions.Stop(id); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	info, _ := h.sessions.Get(id)
	logging.Info(c).Msg("Session stopped")
	c.JSON(http.StatusOK, info)
}

// StreamSession godoc
// @Summary Annotated MJPEG stream
// @Tags sessions
// @Produce multipart/x-mixed-replace
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/stream [get]
func (h *SessionHandler) StreamSession(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.sessions.Get(id); !ok {
		abortWithError(c, http.StatusNotFound, streamcapture.ErrSessionNotFound)
		return
	}
	h.display.StreamMJPEGHTTP(c.Writer, c.Request, id)
}

// Events godoc
// @Summary Dashboard event stream
// @Description Websocket of progress, audio, notice and frame events; omit session to receive all
// @Tags sessions
// @Param session query string false "Session ID"
// @Router /ws [get]
func (h *SessionHandler) Events(c *gin.Context) {
	id := c.Query("session")
	if id != "" {
		if _, ok := h.sessions.Get(id); !ok {
			abortWithError(c, http.StatusNotFound, streamcapture.ErrSessionNotFound)
			return
		}
	}
	h.display.ServeEvents(c.Writer, c.Request, id)
}
