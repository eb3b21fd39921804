package models

import "fmt"

// DetectionError means the detector could not process a frame. The whole
// frame is skipped.
type DetectionError struct {
	Backend string
	Err     error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection failed (%s): %v", e.Backend, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// LogWriteError means a violation row could not be appended to the log
type LogWriteError struct {
	Path string
	Err  error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("violation log write failed (%s): %v", e.Path, e.Err)
}

func (e *LogWriteError) Unwrap() error { return e.Err }

// VoiceSynthesisError means the speech engine could not produce the warning
type VoiceSynthesisError struct {
	Err error
}

func (e *VoiceSynthesisError) Error() string {
	return fmt.Sprintf("voice synthesis failed: %v", e.Err)
}

func (e *VoiceSynthesisError) Unwrap() error { return e.Err }
