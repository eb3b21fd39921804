package postprocessing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/metrics"
	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/voice"
)

// Origin identifies where a frame came from
type Origin struct {
	SessionID string
	Mode      models.Mode
	Name      string // uploaded file name, empty for live capture
}

// FrameOutcome is what the annotator concluded about one frame
type FrameOutcome struct {
	Origin     Origin
	Violations int
	Labels     []string
}

// Outcome reports which side effects ran for a frame. Failures are carried
// here and never returned as errors.
type Outcome struct {
	Logged     bool
	LogErr     error
	Alert      *voice.Alert
	VoiceErr   error
	Published  bool
	PublishErr error
}

type ViolationRecorder interface {
	Record(ctx context.Context, source string, count int) error
}

type AlertThrottle interface {
	MaybeAlert(ctx context.Context, count int) (*voice.Alert, error)
}

// Service fans a violating frame out to the log, the voice throttle and the message bus
type Service struct {
	cfg       *config.Config
	recorder  ViolationRecorder
	throttle  AlertThrottle
	publisher models.MessagePublisher
	metrics   *metrics.Metrics
	clock     clock.Clock

	cooldownMu sync.RWMutex
	lastSent   map[string]time.Time
}

type Option func(*Service)

// WithPublisher enables violation events on the message bus
func WithPublisher(p models.MessagePublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewService(cfg *config.Config, recorder ViolationRecorder, throttle AlertThrottle, opts ...Option) (*Service, error) {
	if recorder == nil {
		return nil, errors.New("violation recorder is required")
	}

	s := &Service{
		cfg:      cfg,
		recorder: recorder,
		throttle: throttle,
		clock:    clock.New(),
		lastSent: make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	log.Info().
		Bool("voice_enabled", throttle != nil).
		Bool("publish_enabled", s.publisher != nil).
		Bool("log_live", cfg.LogLiveViolations).
		Dur("alerts_cooldown", cfg.AlertsCooldown).
		Msg("Post-processing service initialized")

	return s, nil
}

// Handle runs the side effects for one annotated frame. Frames without
// violations are a no-op.
func (s *Service) Handle(ctx context.Context, frame FrameOutcome) Outcome {
	var out Outcome
	if frame.Violations <= 0 {
		return out
	}

	if s.shouldLog(frame.Origin) {
		if err := s.recorder.Record(ctx, frame.Origin.Name, frame.Violations); err != nil {
			out.LogErr = err
			s.metrics.LogWriteErrors.Add(1)
			log.Warn().Err(err).
				Str("session_id", frame.Origin.SessionID).
				Str("source", frame.Origin.Name).
				Msg("Violation log write failed")
		} else {
			out.Logged = true
			s.metrics.LogWrites.Add(1)
		}
	}

	if s.throttle != nil {
		alert, err := s.throttle.MaybeAlert(ctx, frame.Violations)
		switch {
		case err != nil:
			out.VoiceErr = err
			s.metrics.VoiceErrors.Add(1)
			log.Warn().Err(err).Str("session_id", frame.Origin.SessionID).Msg("Voice alert failed")
		case alert != nil:
			out.Alert = alert
			s.metrics.VoiceAlerts.Add(1)
		}
	}

	if s.publisher != nil {
		out.Published, out.PublishErr = s.publish(frame)
	}

	return out
}

// shouldLog applies the live-capture logging switch
func (s *Service) shouldLog(o Origin) bool {
	if o.Mode == models.ModeWebcam && !s.cfg.LogLiveViolations {
		return false
	}
	return true
}

func (s *Service) publish(frame FrameOutcome) (bool, error) {
	key := cooldownKey(frame.Origin)
	if !s.CheckCooldown(key) {
		log.Debug().Str("key", key).Msg("Violation event blocked by cooldown")
		return false, nil
	}

	event := models.ViolationEvent{
		WorkerID:       s.cfg.WorkerID,
		SessionID:      frame.Origin.SessionID,
		Mode:           frame.Origin.Mode,
		Source:         frame.Origin.Name,
		ViolationCount: frame.Violations,
		Labels:         frame.Labels,
		Timestamp:      s.clock.Now(),
	}

	if err := s.publisher.Publish(s.cfg.AlertsSubject, event); err != nil {
		s.metrics.PublishErrors.Add(1)
		log.Warn().Err(err).Str("subject", s.cfg.AlertsSubject).Msg("Failed to publish violation event")
		return false, err
	}

	s.UpdateCooldown(key)
	s.metrics.EventsPublished.Add(1)
	return true, nil
}

func cooldownKey(o Origin) string {
	if o.SessionID != "" {
		return o.SessionID
	}
	return string(o.Mode) + ":" + o.Name
}

// CheckCooldown reports whether an event for key may be published now
func (s *Service) CheckCooldown(key string) bool {
	if s.cfg.AlertsCooldown <= 0 {
		return true
	}
	s.cooldownMu.RLock()
	defer s.cooldownMu.RUnlock()

	last, ok := s.lastSent[key]
	if !ok {
		return true
	}
	return s.clock.Since(last) >= s.cfg.AlertsCooldown
}

// UpdateCooldown stamps key as published now
func (s *Service) UpdateCooldown(key string) {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()
	s.lastSent[key] = s.clock.Now()
}

// Forget drops cooldown bookkeeping for a finished session
func (s *Service) Forget(sessionID string) {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()
	delete(s.lastSent, sessionID)
}

// Shutdown stops the service gracefully
func (s *Service) Shutdown(ctx context.Context) error {
	log.Info().Msg("Post-processing service shutdown")
	return nil
}
