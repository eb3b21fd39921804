package publisher

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/helpers"
	"helmet-guard-go/internal/services/publisher/mjpeg"
	"helmet-guard-go/internal/services/publisher/websocket"
	"helmet-guard-go/internal/services/voice"
)

// Service is the dashboard display: annotated frames go out as MJPEG, every
// other session event goes out over the websocket hub
type Service struct {
	cfg            *config.Config
	mjpegPublisher *mjpeg.Publisher
	hub            *websocket.Hub
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:            cfg,
		mjpegPublisher: mjpeg.NewPublisher(),
		hub:            websocket.NewHub(),
	}
}

func (s *Service) ShowFrame(sessionID string, frame gocv.Mat, violations int) {
	jpeg, err := helpers.EncodeJPEG(frame, s.cfg.OutputQuality)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to encode display frame")
		return
	}
	s.mjpegPublisher.PublishJPEG(sessionID, jpeg)
	s.hub.Broadcast(websocket.Event{Type: websocket.EventFrame, SessionID: sessionID, Violations: &violations})
}

func (s *Service) ReportProgress(sessionID string, progress float64) {
	s.hub.Broadcast(websocket.Event{Type: websocket.EventProgress, SessionID: sessionID, Progress: &progress})
}

func (s *Service) PlayAudio(sessionID string, alert *voice.Alert) {
	if alert == nil || len(alert.Audio.Data) == 0 {
		return
	}
	s.hub.Broadcast(websocket.Event{
		Type:      websocket.EventAudio,
		SessionID: sessionID,
		Audio:     base64.StdEncoding.EncodeToString(alert.Audio.Data),
		MIMEType:  alert.Audio.MIMEType,
		Message:   alert.Message,
		Timestamp: alert.FiredAt,
	})
}

func (s *Service) Notify(sessionID, level, message string) {
	s.hub.Broadcast(websocket.Event{Type: websocket.EventNotice, SessionID: sessionID, Level: level, Message: message})
}

// Forget drops the stored frame and event backlog of a session
func (s *Service) Forget(sessionID string) {
	s.mjpegPublisher.Remove(sessionID)
	s.hub.Forget(sessionID)
}

func (s *Service) StreamMJPEGHTTP(w http.ResponseWriter, r *http.Request, sessionID string) {
	s.mjpegPublisher.StreamMJPEGHTTP(w, r, sessionID)
}

func (s *Service) ServeEvents(w http.ResponseWriter, r *http.Request, sessionID string) {
	s.hub.Serve(w, r, sessionID)
}

// LatestFrame returns the last annotated JPEG shown for a session
func (s *Service) LatestFrame(sessionID string) ([]byte, bool) {
	return s.mjpegPublisher.Latest(sessionID)
}

func (s *Service) ClientCount() int {
	return s.hub.ClientCount()
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.mjpegPublisher.Shutdown()
	s.hub.Shutdown()
	return nil
}
