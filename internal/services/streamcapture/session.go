package streamcapture

import (
	"context"
	"sync"
	"time"

	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/postprocessing"
)

// Session is the mutable state of one driver run
type Session struct {
	mu     sync.RWMutex
	info   models.SessionInfo
	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(id string, mode models.Mode, source string, threshold float64, now time.Time) *Session {
	return &Session{
		info: models.SessionInfo{
			ID:        id,
			Mode:      mode,
			Source:    source,
			State:     models.SessionIdle,
			Threshold: threshold,
			StartedAt: now,
		},
		done: make(chan struct{}),
	}
}

// Info returns a snapshot of the session
func (s *Session) Info() models.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.info
	if s.info.EndedAt != nil {
		t := *s.info.EndedAt
		info.EndedAt = &t
	}
	return info
}

// Done is closed once the driver has terminated
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) origin() postprocessing.Origin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name := s.info.Source
	if s.info.Mode == models.ModeWebcam {
		name = ""
	}
	return postprocessing.Origin{SessionID: s.info.ID, Mode: s.info.Mode, Name: name}
}

func (s *Session) threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Threshold
}

func (s *Session) setState(state models.SessionState) {
	s.mu.Lock()
	s.info.State = state
	s.mu.Unlock()
}

func (s *Session) setTotal(total int) {
	s.mu.Lock()
	s.info.TotalFrames = total
	s.mu.Unlock()
}

// frameDone counts a consumed frame and returns the new progress
func (s *Session) frameDone(violations int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.Processed++
	if violations > 0 {
		s.info.Violations++
	}
	s.info.Progress = Progress(int(s.info.Processed), s.info.TotalFrames)
	return s.info.Progress
}

func (s *Session) terminate(err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.State == models.SessionTerminated {
		return
	}
	s.info.State = models.SessionTerminated
	s.info.EndedAt = &now
	if err != nil {
		s.info.Error = err.Error()
	}
	close(s.done)
}

// Progress is min(processed/total, 1). An unknown total (<= 0) reports 0.
func Progress(processed, total int) float64 {
	if total <= 0 || processed <= 0 {
		return 0
	}
	p := float64(processed) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}
