package frameprocessing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"helmet-guard-go/internal/metrics"
	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/postprocessing"
	"helmet-guard-go/internal/services/voice"
)

// FrameDetector is the subset of the detector the pipeline needs
type FrameDetector interface {
	Detect(ctx context.Context, frame gocv.Mat) ([]models.Detection, error)
}

// ViolationHandler runs side effects for an annotated frame
type ViolationHandler interface {
	Handle(ctx context.Context, frame postprocessing.FrameOutcome) postprocessing.Outcome
}

// FrameResult is the output of one pipeline pass. The caller must Close it.
type FrameResult struct {
	Annotated  gocv.Mat
	Violations int
	Detections []models.Detection
	Alert      *voice.Alert
	LogErr     error
	VoiceErr   error
	Elapsed    time.Duration
}

func (r *FrameResult) Close() error {
	if r == nil {
		return nil
	}
	return r.Annotated.Close()
}

// Pipeline runs detection, annotation and violation side effects on a frame
type Pipeline struct {
	detector  FrameDetector
	annotator *Annotator
	handler   ViolationHandler
	metrics   *metrics.Metrics
}

func NewPipeline(detector FrameDetector, annotator *Annotator, handler ViolationHandler, m *metrics.Metrics) *Pipeline {
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{detector: detector, annotator: annotator, handler: handler, metrics: m}
}

// ProcessFrame runs one frame through the pipeline. A detection failure is
// returned as *models.DetectionError and nothing else happens for that frame.
// Log and voice failures are reported on the result, never as an error.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame gocv.Mat, threshold float64, origin postprocessing.Origin) (*FrameResult, error) {
	start := time.Now()

	dets, err := p.detector.Detect(ctx, frame)
	if err != nil {
		p.metrics.DetectionFailures.Add(1)
		return nil, err
	}

	annotated, violations := p.annotator.Annotate(frame, dets, threshold)
	res := &FrameResult{
		Annotated:  annotated,
		Violations: violations,
		Detections: dets,
	}

	p.metrics.FramesProcessed.Add(1)
	if violations > 0 {
		p.metrics.ViolationFrames.Add(1)
		p.metrics.Violations.Add(uint64(violations))
	}

	if p.handler != nil && violations > 0 {
		out := p.handler.Handle(ctx, postprocessing.FrameOutcome{
			Origin:     origin,
			Violations: violations,
			Labels:     p.violationLabels(dets, threshold),
		})
		res.Alert = out.Alert
		res.LogErr = out.LogErr
		res.VoiceErr = out.VoiceErr
	}

	res.Elapsed = time.Since(start)
	p.metrics.UpdateProcessLatency(res.Elapsed)

	log.Debug().
		Str("session_id", origin.SessionID).
		Int("detections", len(dets)).
		Int("violations", violations).
		Dur("elapsed", res.Elapsed).
		Msg("Frame processed")

	return res, nil
}

func (p *Pipeline) violationLabels(dets []models.Detection, threshold float64) []string {
	seen := map[string]bool{}
	var labels []string
	for _, d := range dets {
		if float64(d.Confidence) < threshold || !p.annotator.IsViolation(d) {
			continue
		}
		if l := d.DisplayLabel(); !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	return labels
}
