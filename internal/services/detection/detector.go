package detection

import (
	"context"
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/models"
)

// Detector finds objects in a single BGR frame. Implementations return either
// the full detection list or a *models.DetectionError, never a partial result.
type Detector interface {
	Detect(ctx context.Context, frame gocv.Mat) ([]models.Detection, error)
	Backend() string
	Close() error
}

// New builds the detector selected by DETECTOR_BACKEND
func New(cfg *config.Config) (Detector, error) {
	switch strings.ToLower(cfg.DetectorBackend) {
	case "", "onnx":
		d, err := NewONNXDetector(ONNXOptions{
			ModelPath:    cfg.ModelPath,
			Classes:      cfg.ModelClasses,
			InputSize:    cfg.ModelInputSize,
			NMSThreshold: float32(cfg.NMSThreshold),
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	case "grpc":
		d, err := NewGRPCDetector(cfg.AIGRPCURL, cfg.AITimeout, cfg.ModelClasses)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q (supported: onnx, grpc)", cfg.DetectorBackend)
	}
}

// labelFor maps a class index onto the configured class names
func labelFor(classes []string, id int) string {
	if id >= 0 && id < len(classes) {
		return classes[id]
	}
	return ""
}
