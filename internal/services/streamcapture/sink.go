package streamcapture

import (
	"gocv.io/x/gocv"

	"helmet-guard-go/internal/services/voice"
)

// Notice levels sent to the display
const (
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// Sink is the display side of a session. Implementations must not retain
// the frame after ShowFrame returns.
type Sink interface {
	ShowFrame(sessionID string, frame gocv.Mat, violations int)
	ReportProgress(sessionID string, progress float64)
	PlayAudio(sessionID string, alert *voice.Alert)
	Notify(sessionID, level, message string)
}
