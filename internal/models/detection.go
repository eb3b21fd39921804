package models

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Detection represents a single object found in a frame by the detector
type Detection struct {
	Box        image.Rectangle `json:"box"`
	ClassID    int             `json:"class_id"`
	Label      string          `json:"label"`
	Confidence float32         `json:"confidence"`
}

// DisplayLabel returns the human-readable label, falling back to the class index
func (d Detection) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("class_%d", d.ClassID)
}

// LabelSet is a case-insensitive set of class labels
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from the given labels
func NewLabelSet(labels ...string) LabelSet {
	set := make(LabelSet, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			set[l] = struct{}{}
		}
	}
	return set
}

// Contains reports whether label is in the set
func (s LabelSet) Contains(label string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

// Labels returns the members of the set
func (s LabelSet) Labels() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	return out
}

// Confidence threshold bounds exposed by the dashboard slider
const (
	MinThreshold     = 0.1
	MaxThreshold     = 1.0
	ThresholdStep    = 0.05
	DefaultThreshold = 0.5
)

// ValidateThreshold checks that a confidence threshold is inside the slider range
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < MinThreshold-1e-9 || t > MaxThreshold+1e-9 {
		return fmt.Errorf("confidence threshold %.2f outside [%.1f, %.1f]", t, MinThreshold, MaxThreshold)
	}
	return nil
}
