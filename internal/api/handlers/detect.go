package handlers

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/helpers"
	"helmet-guard-go/internal/logging"
)

type DetectHandler struct {
	cfg      *config.Config
	sessions SessionService
}

func NewDetectHandler(cfg *config.Config, sessions SessionService) *DetectHandler {
	return &DetectHandler{cfg: cfg, sessions: sessions}
}

// DetectImage godoc
// @Summary Detect helmet violations in an image
// @Description Runs detection on an uploaded jpg/jpeg/png and returns the annotated JPEG
// @Tags detection
// @Accept multipart/form-data
// @Produce image/jpeg
// @Param file formData file true "Image file"
// @Param threshold formData number false "Confidence threshold (0.1-1.0)"
// @Success 200 {file} binary
// @Header 200 {integer} X-Violation-Count "Violating boxes drawn"
// @Header 200 {integer} X-Detection-Count "Raw detections"
// @Header 200 {string} X-Voice-Audio "Base64 spoken warning, present when an alert fired"
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /detect/image [post]
func (h *DetectHandler) DetectImage(c *gin.Context) {
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
	if !helpers.IsImageFile(fh.Filename) {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("unsupported image type: %s", fh.Filename))
		return
	}
	if fh.Size == 0 {
		abortWithError(c, http.StatusBadRequest, errEmptyUpload)
		return
	}

	f, err := fh.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	res, info, err := h.sessions.RunImage(c.Request.Context(), fh.Filename, data, threshold)
	if info.ID != "" {
		logging.SetSession(c, info.ID)
	}
	if err != nil {
		logging.Warn(c).Err(err).Str("file", fh.Filename).Msg("Image detection failed")
		abortWithError(c, statusFor(err), err)
		return
	}
	defer res.Close()

	jpeg, err := helpers.EncodeJPEG(res.Annotated, h.cfg.OutputQuality)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("X-Session-ID", info.ID)
	c.Header("X-Violation-Count", strconv.Itoa(res.Violations))
	c.Header("X-Detection-Count", strconv.Itoa(len(res.Detections)))
	if res.Alert != nil {
		c.Header("X-Voice-Alert", res.Alert.Message)
		if len(res.Alert.Audio.Data) > 0 {
			c.Header("X-Voice-Audio", base64.StdEncoding.EncodeToString(res.Alert.Audio.Data))
			c.Header("X-Voice-Audio-Type", res.Alert.Audio.MIMEType)
		}
	}
	if res.LogErr != nil {
		c.Header("X-Log-Error", res.LogErr.Error())
	}

	logging.Info(c).
		Str("file", fh.Filename).
		Int("violations", res.Violations).
		Int("detections", len(res.Detections)).
		Msg("Image processed")

	c.Data(http.StatusOK, "image/jpeg", jpeg)
}
