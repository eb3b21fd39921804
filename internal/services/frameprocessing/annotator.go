package frameprocessing

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/frameprocessing/solutions"
)

const (
	boxThickness   = 2
	labelFontScale = 0.7
	labelThickness = 2
	labelOffsetY   = 10
)

// Annotator draws detection boxes on a copy of a frame and counts violations
type Annotator struct {
	violations models.LabelSet
	showBanner bool
}

func NewAnnotator(violations models.LabelSet, showBanner bool) *Annotator {
	return &Annotator{violations: violations, showBanner: showBanner}
}

// IsViolation reports whether a detection label belongs to the no-helmet set
func (a *Annotator) IsViolation(det models.Detection) bool {
	return a.violations.Contains(det.DisplayLabel())
}

// Annotate returns an annotated clone of frame and the number of violation
// detections at or above threshold. The caller owns the returned Mat.
func (a *Annotator) Annotate(frame gocv.Mat, dets []models.Detection, threshold float64) (gocv.Mat, int) {
	out := frame.Clone()
	if out.Empty() {
		return out, 0
	}

	violations := 0
	for _, det := range dets {
		if float64(det.Confidence) < threshold {
			continue
		}

		label := det.DisplayLabel()
		boxColor := solutions.CompliantColor
		if a.violations.Contains(label) {
			violations++
			boxColor = solutions.ViolationColor
		}

		box, visible := clampBox(det.Box, out.Cols(), out.Rows())
		if !visible {
			continue
		}
		gocv.Rectangle(&out, box, boxColor, boxThickness)

		text := fmt.Sprintf("%s %.1f%%", label, float64(det.Confidence)*100)
		gocv.PutText(&out, text, image.Pt(box.Min.X, box.Min.Y-labelOffsetY), gocv.FontHersheySimplex, labelFontScale, boxColor, labelThickness)
	}

	if a.showBanner {
		solutions.DrawHelmetBanner(&out, violations)
	}

	return out, violations
}

// clampBox keeps a box inside a width x height frame. It reports false for a
// box lying entirely outside the frame, which is counted but not drawn.
func clampBox(r image.Rectangle, width, height int) (image.Rectangle, bool) {
	r = r.Canon()
	if r.Max.X < 0 || r.Max.Y < 0 || r.Min.X >= width || r.Min.Y >= height {
		return image.Rectangle{}, false
	}
	x1 := max(0, min(width-1, r.Min.X))
	y1 := max(0, min(height-1, r.Min.Y))
	x2 := max(x1, min(width-1, r.Max.X))
	y2 := max(y1, min(height-1, r.Max.Y))
	return image.Rect(x1, y1, x2, y2), true
}
