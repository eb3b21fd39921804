package streamcapture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/helpers"
	"helmet-guard-go/internal/logging"
	"helmet-guard-go/internal/metrics"
	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/frameprocessing"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrShuttingDown    = errors.New("session manager is shutting down")
)

// maxFinished bounds how many terminated sessions are kept for listing
const maxFinished = 50

// Manager owns the session lifecycle. At most one webcam session runs at a
// time; starting another one stops the previous one first.
type Manager struct {
	cfg     *config.Config
	driver  *Driver
	logger  zerolog.Logger
	metrics *metrics.Metrics
	clock   clock.Clock

	openVideo  func(path string) (FrameSource, error)
	openWebcam func(device string) (FrameSource, error)
	onFinish   func(info models.SessionInfo)
	onEvict    func(sessionID string)

	// webcamMu serializes StartWebcam so one device has one session
	webcamMu sync.Mutex

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	webcamID string
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ManagerOption func(*Manager)

// WithSourceOpeners replaces the gocv capture openers
func WithSourceOpeners(video, webcam func(string) (FrameSource, error)) ManagerOption {
	return func(m *Manager) {
		if video != nil {
			m.openVideo = video
		}
		if webcam != nil {
			m.openWebcam = webcam
		}
	}
}

// WithFinishHook is called after a session terminates
func WithFinishHook(fn func(info models.SessionInfo)) ManagerOption {
	return func(m *Manager) { m.onFinish = fn }
}

// WithEvictHook is called when a finished session is dropped from the listing
func WithEvictHook(fn func(sessionID string)) ManagerOption {
	return func(m *Manager) { m.onEvict = fn }
}

func WithManagerClock(c clock.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

func NewManager(cfg *config.Config, proc Processor, sink Sink, met *metrics.Metrics, opts ...ManagerOption) *Manager {
	if met == nil {
		met = metrics.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		metrics:    met,
		clock:      clock.New(),
		openVideo:  OpenVideoFile,
		openWebcam: OpenWebcam,
		sessions:   make(map[string]*Session),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewServiceLogger(cfg, "sessions")
	m.driver = NewDriver(proc, sink, m.clock, cfg.MaxFPS)
	m.driver.base = m.logger
	return m
}

// RunImage decodes and processes a still image synchronously
func (m *Manager) RunImage(ctx context.Context, name string, data []byte, threshold float64) (*frameprocessing.FrameResult, models.SessionInfo, error) {
	s, _, err := m.register(models.ModeImage, name, threshold)
	if err != nil {
		return nil, models.SessionInfo{}, err
	}
	defer m.finish(s)

	frame, err := helpers.DecodeImage(data)
	if err != nil {
		frame.Close()
		err = fmt.Errorf("%w: %v", ErrNoFrame, err)
		s.terminate(err, m.clock.Now())
		return nil, s.Info(), err
	}
	defer frame.Close()

	res, err := m.driver.RunImage(ctx, s, frame)
	return res, s.Info(), err
}

// StartVideo begins processing the video at path in the background. When
// cleanup is true the file is removed once the session ends.
func (m *Manager) StartVideo(name, path string, threshold float64, cleanup bool) (models.SessionInfo, error) {
	src, err := m.openVideo(path)
	if err != nil {
		if cleanup {
			os.Remove(path)
		}
		return models.SessionInfo{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}

	s, ctx, err := m.register(models.ModeVideo, name, threshold)
	if err != nil {
		src.Close()
		if cleanup {
			os.Remove(path)
		}
		return models.SessionInfo{}, err
	}

	m.spawn(ctx, s, func(ctx context.Context) error {
		defer func() {
			if cleanup {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					m.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove spooled video")
				}
			}
		}()
		return m.driver.RunVideo(ctx, s, src)
	})
	return s.Info(), nil
}

// StartWebcam begins live capture, replacing any running webcam session
func (m *Manager) StartWebcam(device string, threshold float64) (models.SessionInfo, error) {
	if device == "" {
		device = m.cfg.WebcamDevice
	}
	if err := models.ValidateThreshold(threshold); err != nil {
		return models.SessionInfo{}, err
	}

	m.webcamMu.Lock()
	defer m.webcamMu.Unlock()

	m.mu.RLock()
	prev := m.webcamID
	m.mu.RUnlock()
	if prev != "" {
		if err := m.Stop(prev); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return models.SessionInfo{}, err
		}
	}

	src, err := m.openWebcam(device)
	if err != nil {
		return models.SessionInfo{}, err
	}

	s, ctx, err := m.register(models.ModeWebcam, device, threshold)
	if err != nil {
		src.Close()
		return models.SessionInfo{}, err
	}

	m.mu.Lock()
	m.webcamID = s.Info().ID
	m.mu.Unlock()

	m.spawn(ctx, s, func(ctx context.Context) error {
		return m.driver.RunLive(ctx, s, src)
	})
	return s.Info(), nil
}

// Stop cancels a session and waits for its driver to terminate
func (m *Manager) Stop(id string) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.cancel()
	<-s.Done()
	return nil
}

func (m *Manager) Get(id string) (models.SessionInfo, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return models.SessionInfo{}, false
	}
	return s.Info(), true
}

// List returns all known sessions, newest first
func (m *Manager) List() []models.SessionInfo {
	m.mu.RLock()
	out := make([]models.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Shutdown stops every running session and waits for the drivers to exit
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("All sessions stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// register creates a session with its cancel function in place before the
// session becomes visible to Stop and List
func (m *Manager) register(mode models.Mode, source string, threshold float64) (*Session, context.Context, error) {
	if err := models.ValidateThreshold(threshold); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, ErrShuttingDown
	}

	ctx, cancel := context.WithCancel(m.ctx)
	s := newSession(uuid.NewString(), mode, source, threshold, m.clock.Now())
	s.cancel = cancel
	m.wg.Add(1)
	m.sessions[s.info.ID] = s
	m.order = append(m.order, s.info.ID)
	m.pruneLocked()

	m.metrics.TotalSessions.Add(1)
	m.metrics.ActiveSessions.Add(1)

	m.logger.Info().
		Str("session_id", s.info.ID).
		Str("mode", mode.String()).
		Str("source", source).
		Float64("threshold", s.info.Threshold).
		Msg("Session started")
	return s, ctx, nil
}

func (m *Manager) spawn(ctx context.Context, s *Session, run func(ctx context.Context) error) {
	go func() {
		defer m.finish(s)
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().
					Str("session_id", s.Info().ID).
					Interface("panic", r).
					Msg("Session driver panicked")
				s.terminate(fmt.Errorf("driver panic: %v", r), m.clock.Now())
			}
		}()

		if err := run(ctx); err != nil {
			m.logger.Warn().Err(err).Str("session_id", s.Info().ID).Msg("Session ended with error")
		}
	}()
}

func (m *Manager) finish(s *Session) {
	defer m.wg.Done()
	s.cancel()

	info := s.Info()
	if !info.State.IsTerminal() {
		s.terminate(nil, m.clock.Now())
	}
	m.metrics.ActiveSessions.Add(-1)

	m.mu.Lock()
	if m.webcamID == info.ID {
		m.webcamID = ""
	}
	m.mu.Unlock()

	if m.onFinish != nil {
		m.onFinish(s.Info())
	}

	m.logger.Info().
		Str("session_id", info.ID).
		Int64("processed", info.Processed).
		Int64("violation_frames", info.Violations).
		Msg("Session finished")
}

// pruneLocked drops the oldest terminated sessions beyond maxFinished
func (m *Manager) pruneLocked() {
	finished := 0
	for _, id := range m.order {
		if s, ok := m.sessions[id]; ok && s.Info().State.IsTerminal() {
			finished++
		}
	}

	kept := m.order[:0]
	for _, id := range m.order {
		s, ok := m.sessions[id]
		if !ok {
			continue
		}
		if finished > maxFinished && s.Info().State.IsTerminal() {
			delete(m.sessions, id)
			finished--
			if m.onEvict != nil {
				go m.onEvict(id)
			}
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}
