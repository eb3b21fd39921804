package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the input source kind selected by the operator
type Mode string

const (
	ModeImage  Mode = "image"
	ModeVideo  Mode = "video"
	ModeWebcam Mode = "webcam"
)

// String returns the string representation of Mode
func (m Mode) String() string {
	return string(m)
}

// IsValid checks if the mode is one of the known input kinds
func (m Mode) IsValid() bool {
	switch m {
	case ModeImage, ModeVideo, ModeWebcam:
		return true
	default:
		return false
	}
}

// ParseMode parses a mode name, case-insensitively
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// SessionState is a stream driver state
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionAcquire    SessionState = "acquire"
	SessionProcess    SessionState = "process"
	SessionEmit       SessionState = "emit"
	SessionTerminated SessionState = "terminated"
)

// String returns the string representation of SessionState
func (s SessionState) String() string {
	return string(s)
}

// IsTerminal reports whether the driver has stopped for good
func (s SessionState) IsTerminal() bool {
	return s == SessionTerminated
}

// SessionInfo is a point-in-time snapshot of a running or finished session
type SessionInfo struct {
	ID          string       `json:"id"`
	Mode        Mode         `json:"mode"`
	Source      string       `json:"source"`
	State       SessionState `json:"state"`
	Threshold   float64      `json:"threshold"`
	TotalFrames int          `json:"total_frames"`
	Processed   int64        `json:"processed_frames"`
	Violations  int64        `json:"violation_frames"`
	Progress    float64      `json:"progress"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}
