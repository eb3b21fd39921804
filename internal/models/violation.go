package models

import "time"

// TimeLayout is the second-precision timestamp layout of the violation log
const TimeLayout = "2006-01-02 15:04:05"

// LogColumns is the fixed schema of the violation log, in column order
var LogColumns = []string{"Time", "File", "Violation Count"}

// ViolationRecord is one row of the violation log
type ViolationRecord struct {
	Time           string `json:"time"`
	File           string `json:"file"`
	ViolationCount int    `json:"violation_count"`
}

// NewViolationRecord stamps a record with t formatted at second precision
func NewViolationRecord(t time.Time, source string, count int) ViolationRecord {
	return ViolationRecord{
		Time:           t.Format(TimeLayout),
		File:           source,
		ViolationCount: count,
	}
}

// ViolationEvent is published on the message bus for each logged violation frame
type ViolationEvent struct {
	WorkerID       string    `json:"worker_id"`
	SessionID      string    `json:"session_id,omitempty"`
	Mode           Mode      `json:"mode"`
	Source         string    `json:"source"`
	ViolationCount int       `json:"violation_count"`
	Labels         []string  `json:"labels,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// MessagePublisher interface for publishing violation events
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}
